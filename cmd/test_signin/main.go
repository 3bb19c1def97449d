package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/arklim/kether-core/internal/infra/security"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	referral := flag.String("referral", "", "referral code for first sign-in")
	flag.Parse()

	key, err := crypto.GenerateKey()
	if hexKey := strings.TrimPrefix(os.Getenv("KETHER_TEST_PRIVATE_KEY"), "0x"); hexKey != "" {
		key, err = crypto.HexToECDSA(hexKey)
	}
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	wallet := crypto.PubkeyToAddress(key.PublicKey).Hex()
	fmt.Println("Signing in as", wallet)

	client := &http.Client{Timeout: 10 * time.Second}

	var challenge struct {
		Nonce   string `json:"nonce"`
		Message string `json:"message"`
	}
	post(client, *baseURL+"/api/v1/auth/challenge", map[string]string{"wallet_address": wallet}, &challenge)

	message := security.AppendTimestamp(challenge.Message, time.Now())
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		log.Fatalf("sign challenge: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	var session struct {
		AccessToken string `json:"access_token"`
		Created     bool   `json:"created"`
	}
	post(client, *baseURL+"/api/v1/auth/verify", map[string]string{
		"wallet_address": wallet,
		"signature":      hexutil.Encode(sig),
		"message":        message,
		"referral_code":  *referral,
	}, &session)
	fmt.Printf("Signed in, created=%v\n", session.Created)

	req, _ := http.NewRequest(http.MethodGet, *baseURL+"/api/v1/ledger/balance", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("balance: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Println("Balance:", strings.TrimSpace(string(body)))
}

func post(client *http.Client, url string, payload, out any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("encode %s: %v", url, err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("build %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("call %s: %v", url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		log.Fatalf("%s returned %d: %s", url, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Fatalf("decode %s: %v", url, err)
	}
}
