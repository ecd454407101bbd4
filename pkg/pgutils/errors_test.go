package pgutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsForeignKeyViolation(t *testing.T) {
	fk := errors.New(`ERROR: insert or update on table "edges" violates foreign key constraint "edges_to_id_fkey" (SQLSTATE 23503)`)
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsUniqueViolation(fk))

	// Wrapping must not hide the code.
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("insert edge: %w", fk)))
}

func TestIsUniqueViolation(t *testing.T) {
	unique := errors.New(`ERROR: duplicate key value violates unique constraint "nodes_pkey" (SQLSTATE 23505)`)
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsForeignKeyViolation(unique))
}

func TestUnrelatedErrorsDoNotMatch(t *testing.T) {
	assert.False(t, IsForeignKeyViolation(nil))
	assert.False(t, IsUniqueViolation(nil))

	plain := errors.New("connection refused")
	assert.False(t, IsForeignKeyViolation(plain))
	assert.False(t, IsUniqueViolation(plain))
}
