package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

const timeout = 15 * time.Second

const identityHeader = "X-Ledger-Identity"

func identity(ctx *cli.Context) string {
	return flagOrEnv(ctx, identityFlagName)
}

func baseUrl(ctx *cli.Context) string {
	return strings.TrimSuffix(flagOrEnv(ctx, urlFlagName), "/")
}

func adminBaseUrl(ctx *cli.Context) string {
	return strings.TrimSuffix(flagOrEnv(ctx, adminUrlFlagName), "/")
}

func get(url, identity string) ([]byte, error) {
	return do(http.MethodGet, url, identity, nil)
}

func post(url, identity string, body any) ([]byte, error) {
	return do(http.MethodPost, url, identity, body)
}

func do(method, url, identity string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	if len(identity) > 0 {
		req.Header.Add(identityHeader, identity)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s", buf)
	}
	return buf, nil
}

func printResponse(buf []byte) error {
	if len(buf) == 0 {
		fmt.Println("ok")
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}
