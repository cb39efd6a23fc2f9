package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kitinfo/kitinfo/pkg/engine"
	"github.com/kitinfo/kitinfo/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a journal store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleJournal_Publish records a short session from dispatcher events.
func ExampleJournal_Publish() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	journal := stores.NewJournal(store)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, e := range []*engine.Event{
		{Type: engine.EventTypeSessionStarted},
		{Type: engine.EventTypeOperationCompleted, Operation: engine.OpAuthenticate, Seq: 1},
		{Type: engine.EventTypeOperationCompleted, Operation: engine.OpMainMenu, Seq: 2, Message: "quit"},
		{Type: engine.EventTypeOperationCompleted, Operation: engine.OpTerminate, Seq: 3},
		{Type: engine.EventTypeSessionCompleted},
	} {
		e.SessionID = "example"
		e.Timestamp = start.Add(time.Duration(i) * time.Second)
		if err := journal.Publish(ctx, e); err != nil {
			log.Fatal(err)
		}
	}

	session, _ := store.GetSession(ctx, "example")
	fmt.Printf("%s: %s after %s\n", session.ID, session.Status, session.Duration())

	ops, _ := store.ListOperations(ctx, "example")
	for _, op := range ops {
		fmt.Printf("%d %s %s\n", op.Seq, op.Operation, op.Status)
	}

	// Output:
	// example: completed after 4s
	// 1 authenticate completed
	// 2 show-main-menu completed
	// 3 terminate completed
}
