// Package state keeps per-chat bot state (started/awake flags and a message
// cache) plus a shared "common" bucket, and persists it as one versioned
// snapshot per bot identity.
package state
