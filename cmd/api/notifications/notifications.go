package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

/* Ntfy delivers push notifications about catalog and lending events
to an ntfy.sh style topic server. When disabled, every call is a no-op. */
type Ntfy struct {
	baseURL string
	enabled bool
	client  *http.Client
}

func NewNtfy(enableNotifications bool, notificationsBaseURL string, client *http.Client) *Ntfy {
	return &Ntfy{
		baseURL: notificationsBaseURL,
		enabled: enableNotifications,
		client:  client,
	}
}

type ErrNotificationFailed struct {
	statusCode int
}

func (e ErrNotificationFailed) Error() string {
	return fmt.Sprintf("ntfy wrong response - want: 200 OK, got: %d", e.statusCode)
}

func NewErrNotificationFailed(statusCode int) ErrNotificationFailed {
	return ErrNotificationFailed{statusCode: statusCode}
}

/* Notifies that a new book entered the catalog. */
func (ntf *Ntfy) BookAdded(ctx context.Context, title string, quantity int) error {
	message := fmt.Sprintf("New book added: Title: %s Quantity: %v", title, quantity)
	return ntf.publish(ctx, "_New_book_added", message)
}

/* Notifies that a lend took the last available copy of a book. */
func (ntf *Ntfy) BookExhausted(ctx context.Context, title string) error {
	message := fmt.Sprintf("Last copy lent: Title: %s", title)
	return ntf.publish(ctx, "_Last_copy_lent", message)
}

func (ntf *Ntfy) publish(ctx context.Context, topic, message string) error {
	if !ntf.enabled {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ntf.baseURL+topic, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("error delivering message (%s) to topic (%s): %w", message, ntf.baseURL+topic, err)
	}

	resp, err := ntf.client.Do(req)
	if err != nil {
		return fmt.Errorf("error delivering message (%s) to topic (%s): %w", message, ntf.baseURL+topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("error delivering message (%s) to topic (%s): %w", message, ntf.baseURL+topic, NewErrNotificationFailed(resp.StatusCode))
	}

	return nil
}
