// Package keygen generates and loads RSA key pairs for SSH authentication.
//
// Private keys are PEM-encoded PKCS#8; public keys use the OpenSSH
// authorized_keys format expected in node metadata.
package keygen
