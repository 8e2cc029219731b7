// Package notify sends push notifications about run outcomes over ntfy.
// Without a configured topic every notification is a no-op.
package notify
