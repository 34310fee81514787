// Package projects resolves the project code that parameterizes key
// derivation and who may work in a project. Project management itself
// lives outside this service.
package projects

import (
	"context"
	"strings"
	"sync"

	id "fedlearn/pkg/domain"
	"fedlearn/pkg/platform/sentinel"
)

// StaticDirectory is a fixed project id to code mapping, with the users
// enrolled in each project, seeded from config.
type StaticDirectory struct {
	mu      sync.RWMutex
	codes   map[id.ProjectID]string
	members map[id.ProjectID]map[id.UserID]struct{}
}

func NewStaticDirectory(seed map[int64]string, members map[int64][]int64) *StaticDirectory {
	d := &StaticDirectory{
		codes:   make(map[id.ProjectID]string, len(seed)),
		members: make(map[id.ProjectID]map[id.UserID]struct{}, len(members)),
	}
	for projectID, code := range seed {
		d.codes[id.ProjectID(projectID)] = strings.TrimSpace(code)
	}
	for projectID, users := range members {
		for _, userID := range users {
			d.addMember(id.ProjectID(projectID), id.UserID(userID))
		}
	}
	return d
}

func (d *StaticDirectory) addMember(projectID id.ProjectID, userID id.UserID) {
	set, ok := d.members[projectID]
	if !ok {
		set = make(map[id.UserID]struct{})
		d.members[projectID] = set
	}
	set[userID] = struct{}{}
}

// Register adds or replaces a project code.
func (d *StaticDirectory) Register(projectID id.ProjectID, code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.codes[projectID] = strings.TrimSpace(code)
}

// Enroll makes userID a member of projectID.
func (d *StaticDirectory) Enroll(projectID id.ProjectID, userID id.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addMember(projectID, userID)
}

// Member reports whether userID is enrolled in projectID. Unknown projects
// have no members.
func (d *StaticDirectory) Member(_ context.Context, projectID id.ProjectID, userID id.UserID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.members[projectID][userID]
	return ok, nil
}

func (d *StaticDirectory) Code(_ context.Context, projectID id.ProjectID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	code, ok := d.codes[projectID]
	if !ok || code == "" {
		return "", sentinel.ErrNotFound
	}
	return code, nil
}
