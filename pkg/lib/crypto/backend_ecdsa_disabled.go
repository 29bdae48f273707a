//go:build dep2p_no_ecdsa

package crypto

const ecdsaEnabled = false
