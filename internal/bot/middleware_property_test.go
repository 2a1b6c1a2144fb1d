package bot

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"credit-ledger/internal/config"
	"credit-ledger/internal/handler"
	"credit-ledger/internal/model"
	"credit-ledger/internal/service"
)

// fakeContext implements the parts of tele.Context the middleware touches.
type fakeContext struct {
	tele.Context
	sender  *tele.User
	text    string
	replies []string
}

func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Chat() *tele.Chat   { return nil }
func (f *fakeContext) Text() string       { return f.text }

func (f *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	f.replies = append(f.replies, fmt.Sprint(what))
	return nil
}

type accountTable map[int64]*model.Account

func (a accountTable) Get(_ context.Context, id int64) (*model.Account, error) {
	if acc, ok := a[id]; ok {
		return acc, nil
	}
	return nil, service.ErrNotFound
}

type brokenResolver struct{}

func (brokenResolver) Principal(context.Context, int64) (service.Principal, error) {
	return service.Principal{}, service.ErrPersistence
}

func runAdmin(resolver PrincipalResolver, userID int64) (called bool, ctx *fakeContext) {
	ctx = &fakeContext{sender: &tele.User{ID: userID}, text: "/adjust 1 10"}
	h := AdminMiddleware(resolver)(func(tele.Context) error {
		called = true
		return nil
	})
	_ = h(ctx)
	return called, ctx
}

// TestAdminMiddlewareProperty checks that an admin command runs exactly when
// the sender is in the configured admin list or holds the ADMIN role.
func TestAdminMiddlewareProperty(t *testing.T) {
	roles := []model.Role{model.RolePlayer, model.RoleClient, model.RoleAdmin}

	rapid.Check(t, func(t *rapid.T) {
		configured := rapid.SliceOfN(rapid.Int64Range(1, 50), 0, 5).Draw(t, "configuredAdmins")

		accounts := accountTable{}
		n := rapid.IntRange(0, 10).Draw(t, "accounts")
		for i := 0; i < n; i++ {
			id := rapid.Int64Range(1, 50).Draw(t, "accountID")
			role := rapid.SampledFrom(roles).Draw(t, "role")
			accounts[id] = &model.Account{ID: id, Role: role}
		}

		cfg := &config.Config{Admin: config.AdminConfig{IDs: configured}}
		identity := handler.NewIdentity(accounts, cfg)

		userID := rapid.Int64Range(1, 50).Draw(t, "userID")
		called, ctx := runAdmin(identity, userID)

		want := cfg.IsAdmin(userID)
		if acc, ok := accounts[userID]; ok && acc.Role == model.RoleAdmin {
			want = true
		}

		if called != want {
			t.Fatalf("user %d: called=%v want=%v (configured=%v)", userID, called, want, configured)
		}
		if !called && len(ctx.replies) != 1 {
			t.Fatalf("rejected command should get exactly one reply, got %v", ctx.replies)
		}
	})
}

func TestAdminMiddleware_ResolverFailure(t *testing.T) {
	called, ctx := runAdmin(brokenResolver{}, 1)
	assert.False(t, called)
	assert.Equal(t, []string{"❌ Something went wrong, please try again later"}, ctx.replies)
}

func TestAdminMiddleware_NoSender(t *testing.T) {
	ctx := &fakeContext{}
	called := false
	h := AdminMiddleware(brokenResolver{})(func(tele.Context) error {
		called = true
		return nil
	})

	assert.NoError(t, h(ctx))
	assert.False(t, called)
	assert.Empty(t, ctx.replies)
}

func TestRecoveryMiddleware(t *testing.T) {
	ctx := &fakeContext{sender: &tele.User{ID: 1}}
	h := RecoveryMiddleware()(func(tele.Context) error {
		panic("nil map")
	})

	assert.NotPanics(t, func() { _ = h(ctx) })
	assert.Len(t, ctx.replies, 1)
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	ctx := &fakeContext{sender: &tele.User{ID: 1, Username: "alice"}, text: "/balance"}
	called := false
	h := LoggingMiddleware()(func(tele.Context) error {
		called = true
		return nil
	})

	assert.NoError(t, h(ctx))
	assert.True(t, called)
}
