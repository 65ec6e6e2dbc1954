package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/matchbot/internal/errors"
)

func TestMapGormErrors(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want svcErr.Kind
	}{
		{"not found", gorm.ErrRecordNotFound, svcErr.KindNotFound},
		{"wrapped not found", fmt.Errorf("load user: %w", gorm.ErrRecordNotFound), svcErr.KindNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, svcErr.KindConflict},
		{"fk", gorm.ErrForeignKeyViolated, svcErr.KindNotFound},
		{"deadline", context.DeadlineExceeded, svcErr.KindStorage},
		{"other", fmt.Errorf("disk on fire"), svcErr.KindStorage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svcErr.KindOf(svcErr.Map(tc.in)))
		})
	}
}

func TestMapKeepsExistingKind(t *testing.T) {
	err := svcErr.QuotaExceeded("daily limit reached")
	assert.Same(t, err, svcErr.Map(err))
	assert.Nil(t, svcErr.Map(nil))
}

func TestKindHelpers(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", svcErr.Validation("age must be between 18 and 100"))

	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
	assert.False(t, svcErr.Is(err, svcErr.KindConflict))
	assert.Equal(t, "age must be between 18 and 100", svcErr.Message(err))
	assert.Equal(t, svcErr.KindUnknown, svcErr.KindOf(fmt.Errorf("plain")))
	assert.Equal(t, "quota_exceeded", svcErr.KindQuotaExceeded.String())
}
