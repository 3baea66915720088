// Package policy maps portal roles onto workflow capabilities. It is the
// one place the role table lives; the services only ever see the gate.
package policy

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/gate"
	"github.com/beedevservices/portal/internal/models"
)

// cacheTTL bounds how stale a cached role profile may be after a role
// change.
const cacheTTL = 30 * time.Second

// Role profiles. Owner and admin hold every capability; HR and employees
// can work drafts up to submission; clients hold nothing and act through
// signing links instead.
var (
	ownerProfile    = gate.NewStaticProfile("owner", gate.CapabilityAll)
	adminProfile    = gate.NewStaticProfile("admin", gate.CapabilityAll)
	hrProfile       = gate.NewStaticProfile("hr", gate.CapDraftSubmit)
	employeeProfile = gate.NewStaticProfile("employee", gate.CapDraftSubmit, gate.CapProposalSend)
	clientProfile   = gate.NewStaticProfile("client")
)

// ProfileForRole returns the capability profile for a role. Unknown roles
// get the empty client profile.
func ProfileForRole(role models.Role) gate.Profile {
	switch role {
	case models.RoleOwner:
		return ownerProfile
	case models.RoleAdmin:
		return adminProfile
	case models.RoleHR:
		return hrProfile
	case models.RoleEmployee:
		return employeeProfile
	default:
		return clientProfile
	}
}

// DBResolver resolves a user ID to their role profile via the users table.
type DBResolver struct {
	db *gorm.DB
}

// NewDBResolver creates a database-backed profile resolver.
func NewDBResolver(db *gorm.DB) *DBResolver {
	return &DBResolver{db: db}
}

// Resolve loads the user and maps their role. Inactive or missing users
// resolve to no profile, which the gate treats as unauthorized.
func (r *DBResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	return ProfileForRole(user.Role), nil
}

// NewGate wires the standard portal gate: DB-backed roles behind a short
// TTL cache.
func NewGate(db *gorm.DB) *gate.Gate[uint] {
	resolver := gate.NewCachedResolver[uint](NewDBResolver(db), cacheTTL)
	return gate.New[uint](resolver)
}
