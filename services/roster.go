package services

import (
	"github.com/hajri-app/hajriback/models"
	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/repository"
)

// DBRoster exposes the registered students to the recognizer. Identities in
// the image store that have no user record are filtered out of results.
type DBRoster struct {
	userRepo repository.UserRepositoryInterface
}

var _ recognition.Roster = (*DBRoster)(nil)

// NewDBRoster creates a roster backed by the user repository
func NewDBRoster(userRepo repository.UserRepositoryInterface) *DBRoster {
	return &DBRoster{userRepo: userRepo}
}

// ListStudents returns every registered student as a roster entry.
func (r *DBRoster) ListStudents() ([]recognition.RosterEntry, error) {
	users, err := r.userRepo.ListByRole(models.RoleStudent)
	if err != nil {
		return nil, err
	}
	entries := make([]recognition.RosterEntry, 0, len(users))
	for _, user := range users {
		entries = append(entries, recognition.RosterEntry{
			Enrollment: user.Username,
			Name:       user.Name,
		})
	}
	return entries, nil
}
