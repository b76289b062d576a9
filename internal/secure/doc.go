// Package secure keeps field passwords out of reach while qb runs and
// removes plaintext scratch files when an edit cycle fails.
//
// Sealed wraps a memguard enclave: the password is encrypted in memory,
// locked against swapping, and only decrypted for the moment a caller
// needs it.
//
//	sealed := secure.SealString(password)
//	defer sealed.Wipe()
//
//	pw, err := sealed.Reveal()
//
// Shred overwrites a file with random bytes before unlinking it. Modern
// SSDs with wear levelling may still retain the old blocks; full disk
// encryption is the only complete answer there.
package secure
