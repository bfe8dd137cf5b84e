package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span for a service operation.
//
//	ctx, span := telemetry.StartSpan(ctx, "pauth/services/authn", "authn.GetPrincipal",
//	    attribute.String(telemetry.AttrPrincipalID, id),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Common attribute keys
const (
	// Authentication scope attributes
	AttrScopePrefix         = "pauth.scope.prefix"
	AttrCredentialsPlugin   = "pauth.plugin.credentials"
	AttrAuthenticatorPlugin = "pauth.plugin.authenticator"
	AttrChallengeProtocol   = "pauth.challenge.protocol"

	// Principal attributes
	AttrPrincipalID   = "principal.id"
	AttrPrincipalType = "principal.type"

	// Group folder attributes
	AttrGroupID      = "group.id"
	AttrGroupMembers = "group.members"

	// Policy attributes
	AttrPolicyAction   = "policy.action"
	AttrPolicyResource = "policy.resource"
	AttrPolicyAllowed  = "policy.allowed"
)
