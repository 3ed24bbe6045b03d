// Package models defines server-side data models persisted in the database,
// together with the typed column values (role lists, permission lists,
// metadata) that convert themselves at the storage edge.
package models
