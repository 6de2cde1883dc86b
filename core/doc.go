// Package core contains the onboarding domain contracts, entities, and the
// approval engine. Persistence and collaborator adapters depend on this
// package; core must not depend on any adapter.
package core
