//go:build dep2p_no_secp256k1

package crypto

const secp256k1Enabled = false
