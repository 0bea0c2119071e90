// Package factory selects the curve provider and the core tunables.
//
// The factory lets callers switch between the pure-arithmetic and the
// platform-backed provider without changing consuming code, and
// centralizes the configuration the packet and channel layers share.
//
// # Configuration
//
// The factory reads these environment variables once, at construction:
//   - CORECRYPTO_PROVIDER: "pure" or "platform"
//   - CORECRYPTO_MAX_SKEW_SECONDS: signed packet clock skew, 1 to 86400
//   - CORECRYPTO_REKEY_GRACE_MS: rekey grace window, 0 to 600000
//   - CORECRYPTO_REQUIRE_CHANNEL_AUTH: "true" or "false"
//
// Unparseable or out-of-range values are logged at warning level and the
// default is kept.
//
// # Usage
//
//	f := factory.NewProviderFactory()
//	p, err := f.CreateProvider()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// A validated variant of the current configuration
//	cfg, err := f.ConfigWith(factory.WithMaxSkewSeconds(60))
//
// # Mode Switching
//
//	f.SwitchToPlatform() // later providers use golang.org/x/crypto
//	f.SwitchToPure()     // back to the module's own arithmetic
package factory
