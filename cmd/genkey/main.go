package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

func main() {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		panic(err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Public key (base64 PKIX):   %s\n", base64.StdEncoding.EncodeToString(pubDER))
	fmt.Printf("Private key (base64 PKCS8): %s\n", base64.StdEncoding.EncodeToString(privDER))
}
