package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/constants"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistration(f *fakeCTFd) *RegistrationService {
	cfg := &config.Config{CTFdInstanceURL: "https://ctf.example.org", RegisterTimeout: time.Minute}
	return NewRegistrationService(f, cfg, zerolog.Nop())
}

func TestBegin(t *testing.T) {
	s := newRegistration(challengeFixture())
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, "900"))
	assert.True(t, s.InProgress("900"))
	assert.ErrorIs(t, s.Begin(ctx, "900"), ErrRegistrationInProgress)

	s.Cancel("900")
	assert.False(t, s.InProgress("900"))
	assert.NoError(t, s.Begin(ctx, "900"))
}

func TestBeginRejectsExistingAccount(t *testing.T) {
	s := newRegistration(challengeFixture())

	assert.ErrorIs(t, s.Begin(context.Background(), "555"), ErrAlreadyRegistered)
	assert.False(t, s.InProgress("555"))
}

func TestBeginLookupFailureReleasesClaim(t *testing.T) {
	f := challengeFixture()
	f.err = errors.New("ctfd down")
	s := newRegistration(f)

	require.Error(t, s.Begin(context.Background(), "900"))
	assert.False(t, s.InProgress("900"))
}

func TestPendingRegistrationExpires(t *testing.T) {
	s := newRegistration(challengeFixture())
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, "900"))
	now = now.Add(59 * time.Second)
	assert.ErrorIs(t, s.Begin(ctx, "900"), ErrRegistrationInProgress)

	now = now.Add(time.Second)
	assert.False(t, s.InProgress("900"))
	assert.NoError(t, s.Begin(ctx, "900"))
}

func TestValidateEmail(t *testing.T) {
	s := newRegistration(newFakeCTFd())
	for _, ok := range []string{"alice@example.com", " bob.smith+ctf@uni.edu.au "} {
		assert.NoError(t, s.ValidateEmail(ok), ok)
	}
	for _, bad := range []string{"", "   ", "alice", "alice@", "@example.com", "a b@example.com"} {
		assert.ErrorIs(t, s.ValidateEmail(bad), ErrInvalidEmail, bad)
	}
}

func TestValidateName(t *testing.T) {
	s := newRegistration(newFakeCTFd())
	assert.NoError(t, s.ValidateName("alice"))
	assert.NoError(t, s.ValidateName(strings.Repeat("é", 128)))
	assert.ErrorIs(t, s.ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, s.ValidateName(strings.Repeat("a", 129)), ErrInvalidName)
}

func TestComplete(t *testing.T) {
	f := challengeFixture()
	s := newRegistration(f)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, "900"))
	reg, err := s.Complete(ctx, "900", " dave ", "dave@example.com")
	require.NoError(t, err)

	assert.Equal(t, "dave", reg.User.Name)
	assert.Equal(t, "https://ctf.example.org/login", reg.LoginURL)
	assert.Len(t, reg.Password, constants.TempPasswordLength)
	for _, c := range reg.Password {
		assert.True(t, strings.ContainsRune(constants.TempPasswordCharset, c), "unexpected password rune %q", c)
	}

	require.Len(t, f.registered, 1)
	assert.Equal(t, "dave@example.com", f.registered[0].Email)
	assert.Equal(t, reg.Password, f.registered[0].Password)
	assert.Equal(t, "900", f.registered[0].Fields[0].Value)
	assert.False(t, s.InProgress("900"))
}

func TestCompleteAlwaysEndsRegistration(t *testing.T) {
	f := challengeFixture()
	s := newRegistration(f)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, "900"))
	_, err := s.Complete(ctx, "900", "dave", "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.False(t, s.InProgress("900"))
	assert.Empty(t, f.registered)

	require.NoError(t, s.Begin(ctx, "900"))
	f.err = errors.New("name taken")
	_, err = s.Complete(ctx, "900", "dave", "dave@example.com")
	assert.ErrorContains(t, err, "name taken")
	assert.False(t, s.InProgress("900"))
}

func TestMaxEmailAttempts(t *testing.T) {
	assert.Equal(t, 5, newRegistration(newFakeCTFd()).MaxEmailAttempts())
}
