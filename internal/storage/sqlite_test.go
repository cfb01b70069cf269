package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

const fullGame = "co.arcade.full_game"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func tx(id string, state storekit.TransactionState, at time.Time) storekit.Transaction {
	return storekit.Transaction{
		Payment:               storekit.Payment{ProductIdentifier: fullGame, Quantity: 1},
		TransactionDate:       at,
		TransactionIdentifier: id,
		TransactionState:      state,
	}
}

func TestStoreOpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Check that the file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := store.RecordPlay("solo"); err != nil {
		t.Fatalf("RecordPlay() failed: %v", err)
	}
	store.Close()

	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer store.Close()

	n, err := store.PlayCount()
	if err != nil {
		t.Fatalf("PlayCount() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 play after reopen, got %d", n)
	}
}

func TestRecordTransactionUpsert(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.RecordTransaction(tx("deadbeef", storekit.TransactionPurchasing, now)); err != nil {
		t.Fatalf("RecordTransaction() failed: %v", err)
	}
	if err := store.RecordTransaction(tx("deadbeef", storekit.TransactionPurchased, now.Add(time.Second))); err != nil {
		t.Fatalf("RecordTransaction() update failed: %v", err)
	}

	entries, err := store.Transactions(10)
	if err != nil {
		t.Fatalf("Transactions() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry after upsert, got %d", len(entries))
	}

	e := entries[0]
	if e.State != storekit.TransactionPurchased {
		t.Errorf("Expected state purchased, got %v", e.State)
	}
	if e.ProductIdentifier != fullGame || e.Quantity != 1 {
		t.Errorf("Unexpected entry %+v", e)
	}
	if !e.TransactionDate.Equal(now.Add(time.Second)) {
		t.Errorf("TransactionDate = %v, want %v", e.TransactionDate, now.Add(time.Second))
	}
}

func TestRecordTransactionError(t *testing.T) {
	store := openTestStore(t)

	failed := tx("f00d", storekit.TransactionFailed, time.Now())
	failed.Error = errors.New("card declined")
	if err := store.RecordTransaction(failed); err != nil {
		t.Fatalf("RecordTransaction() failed: %v", err)
	}

	entries, err := store.Transactions(0)
	if err != nil {
		t.Fatalf("Transactions() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Error != "card declined" {
		t.Errorf("Expected stored error text, got %+v", entries)
	}
}

func TestRecordTransactionRequiresIdentifier(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordTransaction(tx("", storekit.TransactionPurchased, time.Now())); err == nil {
		t.Error("Expected error for empty transaction identifier")
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * 500 * time.Millisecond)
		if err := store.RecordTransaction(tx(id, storekit.TransactionFailed, at)); err != nil {
			t.Fatalf("RecordTransaction(%s) failed: %v", id, err)
		}
	}

	entries, err := store.Transactions(2)
	if err != nil {
		t.Fatalf("Transactions() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries with limit, got %d", len(entries))
	}
	if entries[0].TransactionIdentifier != "c" || entries[1].TransactionIdentifier != "b" {
		t.Errorf("Entries not newest first: %s, %s", entries[0].TransactionIdentifier, entries[1].TransactionIdentifier)
	}
}

func TestHasPurchased(t *testing.T) {
	store := openTestStore(t)

	owned, err := store.HasPurchased(fullGame)
	if err != nil {
		t.Fatalf("HasPurchased() failed: %v", err)
	}
	if owned {
		t.Error("Empty ledger should not grant the product")
	}

	store.RecordTransaction(tx("1", storekit.TransactionFailed, time.Now()))
	store.RecordTransaction(tx("2", storekit.TransactionDeferred, time.Now()))
	if owned, _ := store.HasPurchased(fullGame); owned {
		t.Error("Failed and deferred transactions should not grant the product")
	}

	store.RecordTransaction(tx("3", storekit.TransactionRestored, time.Now()))
	if owned, _ := store.HasPurchased(fullGame); !owned {
		t.Error("Restored transaction should grant the product")
	}
	if owned, _ := store.HasPurchased("co.arcade.other"); owned {
		t.Error("Purchase must not leak to other products")
	}
}

func TestPlays(t *testing.T) {
	store := openTestStore(t)

	for _, route := range []string{"solo", "multiplayer", "solo"} {
		if err := store.RecordPlay(route); err != nil {
			t.Fatalf("RecordPlay(%s) failed: %v", route, err)
		}
	}

	n, err := store.PlayCount()
	if err != nil {
		t.Fatalf("PlayCount() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 plays, got %d", n)
	}
}

func TestPresentationStats(t *testing.T) {
	store := openTestStore(t)

	store.RecordPresentation("closed", 10)
	store.RecordPresentation("closed", 14)
	store.RecordPresentation("purchased", 3)

	stats, err := store.PresentationStats()
	if err != nil {
		t.Fatalf("PresentationStats() failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 outcome groups, got %d", len(stats))
	}

	closed, purchased := stats[0], stats[1]
	if closed.Outcome != "closed" || closed.Count != 2 || closed.AvgSeconds != 12 {
		t.Errorf("Unexpected closed stats %+v", closed)
	}
	if purchased.Outcome != "purchased" || purchased.Count != 1 || purchased.AvgSeconds != 3 {
		t.Errorf("Unexpected purchased stats %+v", purchased)
	}
}
