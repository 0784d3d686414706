// Package endpoint provides the Endpoint Registry for the NHC bridge.
//
// The Endpoint Registry is the persistent catalogue of bridged
// controller actions. Records are seeded from the bridge configuration
// at startup, kept current by the bridge's state/health/property
// updates, and read by the diagnostics API.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                         Endpoint Registry                                │
//	│                                                                          │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │     Registry     │    │    Repository    │    │    Validation    │   │
//	│  │   (registry.go)  │───▶│  (repository.go) │    │ (validation.go)  │   │
//	│  │                  │    │                  │    │                  │   │
//	│  │ • CRUD ops       │    │ • SQLite queries │    │ • Endpoint checks│   │
//	│  │ • In-memory cache│    │ • JSON marshal   │    │ • Slug generation│   │
//	│  │ • Thread safety  │    │ • json_patch     │    │                  │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	│           │                       │                                      │
//	└───────────│───────────────────────│──────────────────────────────────────┘
//	            │                       │
//	            ▼                       ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│   Bridge + REST API  │   │   SQLite Database    │
//	│  • seed on startup   │   │  (endpoints table)   │
//	│  • state/health push │   └──────────────────────┘
//	│  • GET /endpoints    │
//	└──────────────────────┘
//
// # Usage
//
//	// Create repository and registry
//	repo := endpoint.NewSQLiteRepository(db)
//	registry := endpoint.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load endpoints into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Seed from bridge config (no-op for existing records)
//	registry.EnsureEndpoint(ctx, &endpoint.Endpoint{
//	    ID:       "light-living",
//	    Name:     "Living Room Light",
//	    ActionID: "1",
//	    Step:     10,
//	})
//
//	// Updates pushed by the bridge
//	registry.SetEndpointState(ctx, "light-living", endpoint.State{"level": 75})
//	registry.SetEndpointHealth(ctx, "light-living", endpoint.HealthStatusOnline)
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package endpoint
