// Package automation holds automations and runs them.
//
// An Automation pairs one trigger with one action. The Store keeps the
// ordered set of automations, writing the whole set through a Persister
// on every change. The Engine dispatches inbound events to the ready
// automations and records every run in the audit log.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   Engine (engine.go)                      │
//	│  ┌──────────────┐    ┌──────────────┐   ┌─────────────┐  │
//	│  │    Store     │───▶│  Persister   │   │ audit.Repo  │  │
//	│  │  (store.go)  │    │ SQLite/Redis │   │             │  │
//	│  └──────────────┘    └──────────────┘   └─────────────┘  │
//	│        │                                      ▲          │
//	│        ▼                                      │          │
//	│  ┌────────────────────────────────────────────┴──────┐   │
//	│  │  Dispatch pipeline (per automation goroutine)      │   │
//	│  │  1. Snapshot the store, keep ready automations     │   │
//	│  │  2. trigger.Match → InitialData                    │   │
//	│  │  3. trigger.Fire → on DONE action.Fire             │   │
//	│  │  4. Insert audit entry, notify run observers       │   │
//	│  └────────────────────────────────────────────────────┘   │
//	└──────────────────────────────────────────────────────────┘
//
// # Run states
//
// A run starts out SKIPPED with the trigger's initial data. The trigger's
// result moves it to DONE (Proceed), keeps it SKIPPED (Skipped) or moves
// it to ERROR (Erred, a returned error, or a panic). Only a DONE trigger
// fires the action, whose result is folded in the same way.
//
// # Thread Safety
//
// Store, Codec and Engine are safe for concurrent use.
//
// # Usage
//
//	codec := automation.NewCodec(triggers, actions)
//	store := automation.NewStore(automation.NewSQLitePersister(db.DB), codec)
//	engine := automation.NewEngine(store, auditRepo, env)
//	engine.SetLogger(log)
//
//	engine.DispatchAsync(ctx, event.SMS{Sender: "+44...", Message: "hi"})
package automation
