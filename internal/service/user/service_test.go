package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"accessdesk/internal/apperr"
	"accessdesk/internal/model"
	"accessdesk/internal/repository/memory"
	"accessdesk/internal/util"

	"go.uber.org/zap"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.NewUserStore(), "test-secret", time.Hour, zap.NewNop())
}

func TestCreateAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.CreateHRUser(ctx, CreateInput{Username: "hana", Email: "hana@corp.test", Password: "password1"})
	if err != nil {
		t.Fatalf("CreateHRUser: %v", err)
	}
	if u.Role != model.RoleHR || !u.IsActive {
		t.Fatalf("unexpected user %+v", u)
	}

	for _, login := range []string{"hana", "HANA@corp.test"} {
		res, err := svc.Login(ctx, login, "password1")
		if err != nil {
			t.Fatalf("Login(%q): %v", login, err)
		}
		claims, err := util.ParseJWT(res.Token, "test-secret")
		if err != nil {
			t.Fatal(err)
		}
		if claims.UserID != u.ID || claims.Role != model.RoleHR {
			t.Fatalf("unexpected claims %+v", claims)
		}
	}

	if _, err := svc.Login(ctx, "hana", "wrong-pass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.Login(ctx, "ghost", "password1"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	cases := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing username", CreateInput{Email: "a@b.test", Password: "password1"}, "username"},
		{"bad email", CreateInput{Username: "a", Email: "nope", Password: "password1"}, "email"},
		{"short password", CreateInput{Username: "a", Email: "a@b.test", Password: "short"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateHRUser(ctx, tc.in)
			ve, ok := apperr.IsValidation(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(ve.Fields) == 0 || ve.Fields[0] != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, ve.Fields)
			}
		})
	}

	in := CreateInput{Username: "dup", Email: "dup@b.test", Password: "password1"}
	if _, err := svc.CreateHRUser(ctx, in); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateHRUser(ctx, in); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDisabledUserCannotLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	admin, _ := svc.CreateAdmin(ctx, CreateInput{Username: "root", Email: "root@corp.test", Password: "password1"})
	hr, _ := svc.CreateHRUser(ctx, CreateInput{Username: "hana", Email: "hana@corp.test", Password: "password1"})
	actor := model.Actor{ID: admin.ID, Role: model.RoleAdmin}

	if err := svc.SetActive(ctx, actor, hr.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "hana", "password1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	staff, _ := svc.ActiveStaff(ctx, model.RoleHR)
	if len(staff) != 0 {
		t.Fatalf("disabled user still listed as active: %d", len(staff))
	}

	if err := svc.SetActive(ctx, actor, admin.ID, false); err == nil {
		t.Fatal("admin should not be able to deactivate themselves")
	}
	if err := svc.DeleteUser(ctx, actor, hr.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteUser(ctx, actor, hr.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuthorizeTracksAccountState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()
	svc := NewService(store, "test-secret", time.Hour, zap.NewNop())

	u, err := svc.CreateHRUser(ctx, CreateInput{Username: "hana", Email: "hana@corp.test", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Authorize(ctx, u.ID, model.RoleHR); err != nil {
		t.Fatalf("active user: %v", err)
	}
	if err := svc.Authorize(ctx, u.ID, model.RoleAdmin); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("role mismatch err=%v, want ErrForbidden", err)
	}
	if ok, _ := svc.IsActiveStaff(ctx, "HANA@corp.test", model.RoleHR); !ok {
		t.Fatal("expected active hr staff")
	}

	if err := store.SetActive(ctx, u.ID, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.Authorize(ctx, u.ID, model.RoleHR); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("inactive err=%v, want ErrForbidden", err)
	}
	if ok, _ := svc.IsActiveStaff(ctx, "hana@corp.test", model.RoleHR); ok {
		t.Fatal("inactive account must not count as staff")
	}

	if err := store.Delete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Authorize(ctx, u.ID, model.RoleHR); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("deleted err=%v, want ErrUnauthorized", err)
	}
	if ok, err := svc.IsActiveStaff(ctx, "hana@corp.test", model.RoleHR); ok || err != nil {
		t.Fatalf("deleted account ok=%v err=%v", ok, err)
	}
}
