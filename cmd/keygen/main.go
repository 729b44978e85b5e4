// cmd/keygen/main.go
//
// keygen creates a treasury keypair for the claim server.
// It prints the base58 public key and writes the secret as a
// solana-keygen compatible JSON array. With -secret the same bytes are
// added as a new Secret Manager version.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/sirupsen/logrus"

	"tokenclaim/internal/infra/solana"
)

func main() {
	out := flag.String("out", "treasury-keypair.json", "keypair output file")
	force := flag.Bool("force", false, "overwrite an existing output file")
	secret := flag.String("secret", "", "Secret Manager secret to add a version to (projects/<p>/secrets/<name>)")
	flag.Parse()

	log := logrus.WithField("component", "keygen")

	if _, err := os.Stat(*out); err == nil && !*force {
		log.Fatalf("%s already exists (use -force to overwrite)", *out)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Fatal("stat output file")
	}

	// 1. keypair
	acc := types.NewAccount()
	data, err := solana.EncodeKeypairJSON(acc)
	if err != nil {
		log.WithError(err).Fatal("encode keypair")
	}

	// 2. file (0600)
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		log.WithError(err).Fatalf("write %s", *out)
	}

	// 3. Secret Manager (optional)
	if name := strings.TrimSpace(*secret); name != "" {
		version, err := addSecretVersion(context.Background(), name, data)
		if err != nil {
			log.WithError(err).Fatal("secret manager upload failed (keypair file was kept)")
		}
		fmt.Printf("Secret Manager version:\n  %s\n\n", version)
	}

	fmt.Println("============================================")
	fmt.Println("Treasury keypair generated")
	fmt.Println("============================================")
	fmt.Printf("Public Key (treasury address):\n  %s\n\n", acc.PublicKey.ToBase58())
	fmt.Printf("Secret key file (solana-keygen JSON):\n  %s\n\n", *out)
	fmt.Println("IMPORTANT: never commit this file. Fund the treasury's token account before serving claims.")
}

func addSecretVersion(ctx context.Context, parent string, payload []byte) (string, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	res, err := client.AddSecretVersion(ctx, &secretspb.AddSecretVersionRequest{
		Parent:  parent,
		Payload: &secretspb.SecretPayload{Data: payload},
	})
	if err != nil {
		return "", err
	}
	return res.GetName(), nil
}
