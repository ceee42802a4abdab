// Package deposits уведомляет владеющий депозит об изменениях flow.
//
// Депозиты этим модулем не управляются: Notifier шлёт callback на
// внешний сервис депозитов. Уведомление — best-effort по построению,
// контроллер flows логирует сбой и продолжает работу.
package deposits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jrcastro2/cds-videos/internal/domain"
)

// Notifier шлёт состояние flow на callback-URL сервиса депозитов.
type Notifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewNotifier создаёт Notifier. baseURL — корень API депозитов.
func NewNotifier(baseURL string) *Notifier {
	return &Notifier{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FlowUpdated отправляет сериализованный flow депозиту.
// PUT {base}/deposits/{deposit_id}/flow
func (n *Notifier) FlowUpdated(ctx context.Context, depositID string, view domain.FlowView) error {
	body, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal flow view: %w", err)
	}

	url := fmt.Sprintf("%s/deposits/%s/flow", n.baseURL, depositID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify deposit %s: %w", depositID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify deposit %s: HTTP %d", depositID, resp.StatusCode)
	}
	return nil
}
