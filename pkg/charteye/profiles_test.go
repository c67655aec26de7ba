package charteye

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetUserProfileCreatesFreeProfile(t *testing.T) {
	core := setupTestCore(t, Options{})

	profile, err := core.GetUserProfile("u1")
	if err != nil {
		t.Fatalf("GetUserProfile: %v", err)
	}
	if profile.AccountStatus != AccountFree || profile.UploadCount != 0 || profile.DisplayName != "User" {
		t.Fatalf("unexpected new profile: %+v", profile)
	}
	if profile.CreatedAt != "2024-03-15T12:00:00Z" {
		t.Fatalf("unexpected created_at %q", profile.CreatedAt)
	}

	again, err := core.GetUserProfile("u1")
	if err != nil {
		t.Fatalf("GetUserProfile again: %v", err)
	}
	if *again != *profile {
		t.Fatalf("expected stable profile, got %+v vs %+v", again, profile)
	}
	if _, err := core.GetUserProfile(""); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	core := setupTestCore(t, Options{})
	name := "  Trader Joe "
	email := "joe@example.com"

	profile, err := core.UpdateUserProfile("u1", ProfileUpdate{DisplayName: &name, Email: &email})
	if err != nil {
		t.Fatalf("UpdateUserProfile: %v", err)
	}
	if profile.DisplayName != "Trader Joe" || profile.Email != email {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	blank := ""
	profile, err = core.UpdateUserProfile("u1", ProfileUpdate{DisplayName: &blank})
	if err != nil {
		t.Fatalf("UpdateUserProfile blank: %v", err)
	}
	if profile.DisplayName != "User" || profile.Email != email {
		t.Fatalf("expected default name and untouched email, got %+v", profile)
	}
}

func TestUploadGateStopsFreeAccountAtLimit(t *testing.T) {
	core := setupTestCore(t, Options{FreeUploadLimit: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := core.AnalyzeChart(ctx, ChartUpload{UserID: "u1", Data: pngData}); err != nil {
			t.Fatalf("upload %d: %v", i+1, err)
		}
	}
	_, err := core.AnalyzeChart(ctx, ChartUpload{UserID: "u1", Data: pngData})
	if !IsErrorCode(err, ErrCodeLimitExceeded) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}

	profile, _ := core.GetUserProfile("u1")
	if profile.UploadCount != 3 {
		t.Fatalf("rejected upload must not be counted, got %d", profile.UploadCount)
	}
	count, _ := core.CountUserAnalyses("u1")
	if count != 3 {
		t.Fatalf("expected 3 stored analyses, got %d", count)
	}

	if _, err := core.AnalyzeChart(ctx, ChartUpload{Data: pngData}); err != nil {
		t.Fatalf("anonymous uploads bypass the gate: %v", err)
	}
}

func TestUploadGatePremiumIsUnlimited(t *testing.T) {
	core := setupTestCore(t, Options{FreeUploadLimit: 1})
	ctx := context.Background()

	if _, err := core.UpgradeToPremium("u1"); err != nil {
		t.Fatalf("UpgradeToPremium: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := core.AnalyzeChart(ctx, ChartUpload{UserID: "u1", Data: pngData}); err != nil {
			t.Fatalf("premium upload %d: %v", i+1, err)
		}
	}
	profile, _ := core.GetUserProfile("u1")
	if profile.UploadCount != 4 || profile.AccountStatus != AccountPremium {
		t.Fatalf("unexpected premium profile: %+v", profile)
	}
}

func TestUploadGateConcurrentReservations(t *testing.T) {
	core := setupTestCore(t, Options{FreeUploadLimit: 5})

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := core.reserveUpload("racer")
			switch {
			case err == nil:
				accepted.Add(1)
			case IsErrorCode(err, ErrCodeLimitExceeded):
				rejected.Add(1)
			default:
				t.Errorf("reserveUpload: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 5 || rejected.Load() != 15 {
		t.Fatalf("expected 5 accepted and 15 rejected, got %d and %d", accepted.Load(), rejected.Load())
	}
	profile, _ := core.GetUserProfile("racer")
	if profile.UploadCount != 5 {
		t.Fatalf("expected count 5, got %d", profile.UploadCount)
	}
}

func TestTestUpgrade(t *testing.T) {
	core := setupTestCore(t, Options{TestUpgradeKey: "secret-key"})

	if _, err := core.TestUpgrade("u1", "wrong"); !IsErrorCode(err, ErrCodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := core.TestUpgrade("", "secret-key"); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	profile, err := core.TestUpgrade("u1", "secret-key")
	if err != nil {
		t.Fatalf("TestUpgrade: %v", err)
	}
	if profile.AccountStatus != AccountPremium {
		t.Fatalf("expected premium, got %s", profile.AccountStatus)
	}
	again, err := core.TestUpgrade("u1", "secret-key")
	if err != nil || again.AccountStatus != AccountPremium {
		t.Fatalf("repeat upgrade should be a no-op, got %+v (%v)", again, err)
	}
}

func TestDefaultTestUpgradeKey(t *testing.T) {
	core := setupTestCore(t, Options{})
	if _, err := core.TestUpgrade("u1", "test-upgrade-key-123"); err != nil {
		t.Fatalf("expected default key to work: %v", err)
	}
}
