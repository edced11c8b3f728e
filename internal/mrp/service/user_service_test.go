package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/bitfantasy/nimo-mrp/internal/mrp/entity"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/repository"
	"github.com/bitfantasy/nimo-mrp/internal/mrp/testutil"
)

func TestUserCreateHashesPassword(t *testing.T) {
	db, svcs := newTestServices(t)
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	ctx := context.Background()

	user, err := svcs.User.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreateUserRequest{
		Username: "planner01", Name: "计划员一号", Password: "secret-pass-1", Role: entity.RolePlanner,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if user.PasswordHash == "secret-pass-1" {
		t.Error("Password must not be stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-pass-1")); err != nil {
		t.Errorf("Stored hash does not match password: %v", err)
	}
	if user.Status != entity.UserStatusActive {
		t.Errorf("Expected active status, got %s", user.Status)
	}
}

func TestUserCreateRejectsUnknownRole(t *testing.T) {
	db, svcs := newTestServices(t)
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)

	_, err := svcs.User.Create(context.Background(), "00000000-0000-4000-8000-000000000001", &CreateUserRequest{
		Username: "x", Name: "x", Password: "secret-pass-1", Role: "superuser",
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for unknown role, got %v", err)
	}
}

func TestUserChangePassword(t *testing.T) {
	db, svcs := newTestServices(t)
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	ctx := context.Background()

	user, err := svcs.User.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreateUserRequest{
		Username: "viewer01", Name: "查看员", Password: "old-password1", Role: entity.RoleViewer,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 旧密码错误
	err = svcs.User.ChangePassword(ctx, user.ID, &ChangePasswordRequest{
		OldPassword: "wrong-password", NewPassword: "new-password1",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}

	if err := svcs.User.ChangePassword(ctx, user.ID, &ChangePasswordRequest{
		OldPassword: "old-password1", NewPassword: "new-password1",
	}); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	updated, _ := svcs.User.Get(ctx, user.ID)
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new-password1")); err != nil {
		t.Errorf("New password not stored: %v", err)
	}
}

func TestUserSoftDelete(t *testing.T) {
	db, svcs := newTestServices(t)
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	ctx := context.Background()

	user, err := svcs.User.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreateUserRequest{
		Username: "temp01", Name: "临时用户", Password: "temp-password", Role: entity.RoleViewer,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svcs.User.Delete(ctx, user.ID, "00000000-0000-4000-8000-000000000001"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svcs.User.Get(ctx, user.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestSupplierScoreUpdatesRating(t *testing.T) {
	db, svcs := newTestServices(t)
	testutil.SeedTestUser(t, db, "00000000-0000-4000-8000-000000000001", "admin", entity.RoleAdmin)
	ctx := context.Background()

	supplier, err := svcs.Supplier.Create(ctx, "00000000-0000-4000-8000-000000000001", &CreateSupplierRequest{
		SupplierCode: "SUP-R01", Name: "评分测试供应商", Type: entity.SupplierTypeRawMaterial,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	supplier, err = svcs.Supplier.Score(ctx, supplier.ID, "00000000-0000-4000-8000-000000000001", &ScoreSupplierRequest{
		QualityScore: 95, DeliveryScore: 95, PriceScore: 90, ServiceScore: 90,
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if supplier.Rating != entity.SupplierRatingA {
		t.Errorf("Expected rating A, got %s", supplier.Rating)
	}

	// 评分持久化
	got, _ := svcs.Supplier.Get(ctx, supplier.ID)
	if got.Rating != entity.SupplierRatingA || got.QualityScore != 95 {
		t.Errorf("Expected persisted scores, got %+v", got)
	}
}
