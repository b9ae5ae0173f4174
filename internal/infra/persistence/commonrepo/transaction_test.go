package commonrepo

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.True(t, IsTransient(fmt.Errorf("save: %w", &mysql.MySQLError{Number: 1205})))
	assert.True(t, IsTransient(driver.ErrBadConn))
	assert.True(t, IsTransient(mysql.ErrInvalidConn))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsTransient(errors.New("boom")))
}
