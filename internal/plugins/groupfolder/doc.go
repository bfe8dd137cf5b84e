// Package groupfolder stores groups and resolves group membership.
//
// A GroupFolder is an authenticator plugin that never authenticates
// credentials. It resolves group ids to group information and keeps an inverse
// index from principal id to the ids of the groups the principal belongs to,
// so that "which groups is X in" is a map lookup.
//
// Group ids in the inverse index carry the folder prefix. Principals created
// through an authentication scope get these ids, prefixed with the scope
// prefix, appended to their Groups by the subscriber installed with Subscribe.
//
// Membership changes made through GroupInformation.SetPrincipals are checked
// for cycles. A change that would make a group a member of itself, directly
// or through other groups, is rolled back and reported as a GroupCycleError.
package groupfolder
