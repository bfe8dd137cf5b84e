package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Group is a persisted group of a group folder. Folder is the plugin name the
// folder is configured under; Name is the key within the folder.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID          string        `bun:"id,pk"`
	Folder      string        `bun:"folder,notnull,unique:uq_groups_folder_name"`
	Name        string        `bun:"name,notnull,unique:uq_groups_folder_name"`
	Title       string        `bun:"title,notnull,default:''"`
	Description string        `bun:"description,notnull,default:''"`
	Members     []GroupMember `bun:"rel:has-many,join:id=group_id"`
	CreatedAt   time.Time     `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull,default:current_timestamp"`
}

// MemberIDs returns the member principal ids in stored order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.PrincipalID
	}
	return ids
}

// GroupMember is one direct member of a group. Position keeps the member
// order the group was given.
type GroupMember struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`

	GroupID     string `bun:"group_id,pk"`
	Position    int    `bun:"position,pk"`
	PrincipalID string `bun:"principal_id,notnull"`
}

// Principal is a persisted internal principal of a principal folder.
type Principal struct {
	bun.BaseModel `bun:"table:principals,alias:p"`

	ID              string    `bun:"id,pk"`
	Folder          string    `bun:"folder,notnull,unique:uq_principals_folder_name"`
	Name            string    `bun:"name,notnull,unique:uq_principals_folder_name"`
	Login           string    `bun:"login,notnull"`
	PasswordHash    string    `bun:"password_hash,notnull"`
	PasswordManager string    `bun:"password_manager,notnull"`
	Title           string    `bun:"title,notnull,default:''"`
	Description     string    `bun:"description,notnull,default:''"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RevokedToken is a denylisted bearer token, kept until it would have
// expired anyway.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rt"`

	JTI       string    `bun:"jti,pk"`
	Subject   string    `bun:"subject,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	RevokedAt time.Time `bun:"revoked_at,notnull,default:current_timestamp"`
}

// PolicyRule is one stored authorization rule line.
type PolicyRule struct {
	bun.BaseModel `bun:"table:policy_rules,alias:pr"`

	Ptype string `bun:"ptype,pk,type:varchar(16)"`
	V0    string `bun:"v0,pk,type:varchar(255)"`
	V1    string `bun:"v1,pk,type:varchar(255)"`
	V2    string `bun:"v2,pk,type:varchar(255)"`
}
