// Package auth holds the session boundary around the external identity
// provider. The credential exchange itself happens elsewhere; this package
// only stores the resulting identity and access token in a server-side
// session and answers "who is this request" for the rest of the app. An
// absent identity means guest mode.
//
// # Usage
//
// Initialize the session layer in entrypoint:
//
//	sessions, err := auth.NewSessionManager(sqlDB, cfg.Sessions)
//	router.Use(sessions.SessionLoadSave())
//
// Read the identity in handlers:
//
//	identity := sessions.Identity(c.Request) // "" in guest mode
package auth
