package memory

import (
	"context"
	"sync"

	"github.com/concord-chat/devchat/internal/models"
)

// Users is an in-memory user directory
type Users struct {
	mu      sync.Mutex
	records map[string]models.UserRecord

	PutErr   error
	PutCalls int
}

// NewUsers creates an empty directory
func NewUsers() *Users {
	return &Users{records: make(map[string]models.UserRecord)}
}

// Put stores rec under uid, replacing any previous record
func (u *Users) Put(ctx context.Context, uid string, rec models.UserRecord) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.PutCalls++
	if u.PutErr != nil {
		return u.PutErr
	}
	u.records[uid] = rec
	return nil
}

// Get returns the record for uid
func (u *Users) Get(uid string) (models.UserRecord, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.records[uid]
	return rec, ok
}
