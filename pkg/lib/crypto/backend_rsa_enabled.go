//go:build !dep2p_no_rsa

package crypto

const rsaEnabled = true
