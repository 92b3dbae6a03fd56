package wuzapi

import (
	"context"
	"net/http"
	"time"

	"wa-gateway/internal/domain"
)

// qrCode reads the session QR. name only labels log lines; the token is
// never logged.
func (c *Client) qrCode(ctx context.Context, name, token string) domain.Outcome {
	out := c.session(ctx, http.MethodGet, "/session/qr", token, nil)
	if !out.IsOK() || !missingQR(out.Body) || c.qrStore == nil {
		return out
	}

	c.log.Info("qr code missing from api, reading session store", "instance", name)
	code := c.recoverQR(ctx, name, token)
	if code == "" {
		c.log.Error("qr code not found in session store", "instance", name)
		return out
	}

	data, ok := out.Body["data"].(map[string]any)
	if !ok {
		data = map[string]any{}
		out.Body["data"] = data
	}
	data["QRCode"] = code
	return out
}

// missingQR reports whether body.data.QRCode is absent, null or "".
// A non-object data field is left alone.
func missingQR(body map[string]any) bool {
	raw, present := body["data"]
	if !present || raw == nil {
		return true
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	switch qr := data["QRCode"].(type) {
	case nil:
		return true
	case string:
		return qr == ""
	}
	return false
}

// recoverQR polls the session store twice, after firstWait and then after a
// further secondWait. It returns "" when both polls come back empty.
func (c *Client) recoverQR(ctx context.Context, name, token string) string {
	for _, wait := range []time.Duration{c.firstWait, c.secondWait} {
		if !sleep(ctx, wait) {
			return ""
		}
		code, err := c.qrStore.QRCode(ctx, token)
		if err != nil {
			c.log.Error("read qr code", "instance", name, "err", err)
			continue
		}
		if code != "" {
			return code
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
