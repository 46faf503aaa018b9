/*
Package middleware wraps a ports.SessionStore with data protection for preview
snapshots.

  - NewPIIMiddleware masks personal data typed by the user (e-mail addresses,
    card numbers, phone numbers) before it is persisted.
  - NewEncryptionMiddleware seals message content with AES-GCM and supports key
    rotation through fallback keys.

Both leave the live simulator state untouched; only what reaches the store changes.
*/
package middleware
