//go:build !dep2p_no_ed25519

package crypto

const ed25519Enabled = true
