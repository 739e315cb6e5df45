package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	api        *tgbotapi.BotAPI
	token      string
	httpClient *http.Client
}

type CommandUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Command  string
	Args     string
}

type PreCheckoutUpdate struct {
	QueryID string
	UserID  int64
	Payload string
}

type SuccessfulPaymentUpdate struct {
	ChatID           int64
	UserID           int64
	Currency         string
	TotalAmount      int
	InvoicePayload   string
	TelegramChargeID string
}

type Handlers struct {
	OnCommand           func(context.Context, CommandUpdate) error
	OnPreCheckout       func(context.Context, PreCheckoutUpdate) error
	OnSuccessfulPayment func(context.Context, SuccessfulPaymentUpdate) error
}

func NewBot(token string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{
		api:   api,
		token: strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.PreCheckoutQuery != nil && handlers.OnPreCheckout != nil {
				err := handlers.OnPreCheckout(ctx, PreCheckoutUpdate{
					QueryID: update.PreCheckoutQuery.ID,
					UserID:  update.PreCheckoutQuery.From.ID,
					Payload: update.PreCheckoutQuery.InvoicePayload,
				})
				if err != nil {
					return err
				}
				continue
			}

			if update.Message == nil || update.Message.From == nil {
				continue
			}

			if update.Message.SuccessfulPayment != nil && handlers.OnSuccessfulPayment != nil {
				payment := update.Message.SuccessfulPayment
				err := handlers.OnSuccessfulPayment(ctx, SuccessfulPaymentUpdate{
					ChatID:           update.Message.Chat.ID,
					UserID:           update.Message.From.ID,
					Currency:         payment.Currency,
					TotalAmount:      payment.TotalAmount,
					InvoicePayload:   payment.InvoicePayload,
					TelegramChargeID: payment.TelegramPaymentChargeID,
				})
				if err != nil {
					return err
				}
				continue
			}

			if update.Message.IsCommand() && handlers.OnCommand != nil {
				err := handlers.OnCommand(ctx, CommandUpdate{
					ChatID:   update.Message.Chat.ID,
					UserID:   update.Message.From.ID,
					Username: update.Message.From.UserName,
					Command:  update.Message.Command(),
					Args:     update.Message.CommandArguments(),
				})
				if err != nil {
					return err
				}
			}
		}
	}
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(queryID) == "" {
		return fmt.Errorf("pre checkout query id is required")
	}

	cfg := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	}
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer pre checkout query: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	cfg := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("delete telegram message: %w", err)
	}

	_ = ctx
	return nil
}

// CreateInvoiceLink calls the Bot API method directly: the vendored client
// predates createInvoiceLink, and Stars invoices need it.
func (b *Bot) CreateInvoiceLink(ctx context.Context, title, description, payload, currency string, amount int) (string, error) {
	if b == nil || b.token == "" {
		return "", fmt.Errorf("telegram bot is not initialized")
	}

	body, err := json.Marshal(map[string]any{
		"title":          title,
		"description":    description,
		"payload":        payload,
		"provider_token": "",
		"currency":       currency,
		"prices": []map[string]any{
			{"label": "Premium", "amount": amount},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal invoice request: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Result      string `json:"result"`
		Description string `json:"description"`
	}
	if err := b.call(ctx, "createInvoiceLink", "application/json", bytes.NewReader(body), &result); err != nil {
		return "", err
	}
	if !result.OK {
		return "", fmt.Errorf("create invoice link: %s", result.Description)
	}

	return result.Result, nil
}

// SendAudio uploads the audio bytes as multipart form data. protect forwards
// Telegram's protect_content flag so recipients cannot re-share the file.
func (b *Bot) SendAudio(ctx context.Context, chatID int64, fileName string, audio []byte, title, performer string, duration int, protect bool) (int, error) {
	if b == nil || b.token == "" {
		return 0, fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || len(audio) == 0 {
		return 0, fmt.Errorf("invalid send audio payload")
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = "track.mp3"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", fileName)
	if err != nil {
		return 0, fmt.Errorf("create audio form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return 0, fmt.Errorf("write audio form file: %w", err)
	}

	fields := map[string]string{
		"chat_id":         strconv.FormatInt(chatID, 10),
		"title":           title,
		"performer":       performer,
		"duration":        strconv.Itoa(duration),
		"protect_content": strconv.FormatBool(protect),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return 0, fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close multipart writer: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int `json:"message_id"`
		} `json:"result"`
	}
	if err := b.call(ctx, "sendAudio", writer.FormDataContentType(), &buf, &result); err != nil {
		return 0, err
	}
	if !result.OK {
		return 0, fmt.Errorf("send audio: %s", result.Description)
	}

	return result.Result.MessageID, nil
}

func (b *Bot) call(ctx context.Context, method, contentType string, body io.Reader, target any) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	return nil
}
