package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := "UPDATE subscriptions SET membership_number = ?, number_assigned_at = ? WHERE id = ?"
	assert.Equal(t, q, New(nil).rebind(q))
	assert.Equal(t,
		"UPDATE subscriptions SET membership_number = $1, number_assigned_at = $2 WHERE id = $3",
		NewWithDialect(nil, Postgres).rebind(q))
}
