package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"strings"
	"text/template"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/email"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"
	"enoriel/autos/internal/storage"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
)

const (
	TypeEmailDelivery      = "email:deliver"
	TypeInspectionReminder = "booking:inspection_reminder"
	TypeAttachmentProcess  = "attachment:process"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueImages   = "images"
)

// RedisOpt builds the asynq connection from the shared Redis settings.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// TaskProcessor holds what the task handlers need.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	templates   services.IEmailTemplateService
	bookings    services.IBookingService
	cars        services.ICarService
	attachments storage.IAttachmentStorage
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	templates services.IEmailTemplateService,
	bookings services.IBookingService,
	cars services.ICarService,
	attachments storage.IAttachmentStorage,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		templates:   templates,
		bookings:    bookings,
		cars:        cars,
		attachments: attachments,
	}
}

// NewServer returns an asynq server and the mux for the selected worker roles.
// The caller starts and stops the server.
func NewServer(cfg *config.Config, processor *TaskProcessor, isBgWorker, isImageWorker bool) (*asynq.Server, *asynq.ServeMux) {
	queues := map[string]int{}
	mux := asynq.NewServeMux()

	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeInspectionReminder, processor.HandleInspectionReminderTask)
		log.Println("Registered notification task handlers.")
	}
	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeAttachmentProcess, processor.HandleAttachmentProcessTask)
		log.Println("Registered attachment processing task handlers.")
	}

	srv := asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Queues: queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
		}),
	})
	return srv, mux
}

// --- Email delivery ---

type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

func NewEmailDeliveryTask(payload EmailTaskPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, b, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

func render(name, src string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// composeMessage renders a template into a plain-text message with headers.
func (p *TaskProcessor) composeMessage(ctx context.Context, payload EmailTaskPayload) (string, []byte, error) {
	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}
	tmpl, err := p.templates.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		return "", nil, fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	subject, err := render("subject", tmpl.Subject, payload.Data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render subject of %s: %v: %w", payload.TemplateID, err, asynq.SkipRetry)
	}
	// Header injection guard.
	subject = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(subject)
	body, err := render("body", tmpl.Body, payload.Data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render body of %s: %v: %w", payload.TemplateID, err, asynq.SkipRetry)
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = "noreply@example.com"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", payload.To)
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "%s: %s\r\n", email.TemplateHeader, payload.TemplateID)
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return subject, []byte(sb.String()), nil
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	subject, raw, err := p.composeMessage(ctx, payload)
	if err != nil {
		return err
	}
	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, raw); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", payload.TemplateID, payload.To, err)
	}
	log.Printf("Email task processed: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

// --- Inspection reminder ---

type InspectionReminderPayload struct {
	BookingID uint64 `json:"booking_id"`
	// InspectionAt identifies the slot the reminder was scheduled for.
	InspectionAt time.Time `json:"inspection_at"`
}

func NewInspectionReminderTask(payload InspectionReminderPayload, processAt time.Time) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reminder payload: %w", err)
	}
	return asynq.NewTask(TypeInspectionReminder, b,
		asynq.Queue(QueueCritical),
		asynq.ProcessAt(processAt),
		asynq.MaxRetry(3),
	), nil
}

// HandleInspectionReminderTask emails the customer ahead of the slot. Bookings that moved
// on, were cancelled, or were rescheduled get no reminder.
func (p *TaskProcessor) HandleInspectionReminderTask(ctx context.Context, t *asynq.Task) error {
	var payload InspectionReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	booking, err := p.bookings.Get(ctx, payload.BookingID)
	if errors.Is(err, services.ErrNotFound) {
		log.Printf("Booking %d is gone; dropping inspection reminder.", payload.BookingID)
		return nil
	}
	if err != nil {
		return err
	}
	if booking.Status != models.StatusInspectionScheduled || booking.InspectionDate == nil ||
		!booking.InspectionDate.Equal(payload.InspectionAt) {
		log.Printf("Booking %d no longer awaits the %s inspection; skipping reminder.", booking.ID, payload.InspectionAt.Format(time.RFC3339))
		return nil
	}
	if booking.CustomerEmail == "" || !booking.NotifyByEmail {
		return nil
	}

	carTitle := ""
	if car, err := p.cars.GetCar(ctx, booking.CarID); err == nil {
		carTitle = car.Title
	} else {
		log.Printf("Error loading car %d for reminder: %v", booking.CarID, err)
	}

	at := booking.InspectionDate.UTC()
	payloadData := EmailTaskPayload{
		To:         booking.CustomerEmail,
		TemplateID: services.TemplateInspectionReminder,
		Data: map[string]interface{}{
			"booking_id":    booking.ID,
			"car_title":     carTitle,
			"customer_name": booking.CustomerName,
			"date":          at.Format("January 02, 2006"),
			"time":          at.Format("03:04 PM"),
			"location":      booking.InspectionLocation,
			"link":          customerLink(p.cfg, booking.ID),
		},
	}
	subject, raw, err := p.composeMessage(ctx, payloadData)
	if err != nil {
		return err
	}
	return p.emailSender.Send(ctx, []string{booking.CustomerEmail}, subject, raw)
}

// --- Attachment processing ---

type AttachmentTaskPayload struct {
	BookingID uint64 `json:"booking_id"`
	Key       string `json:"key"`
}

func NewAttachmentProcessTask(payload AttachmentTaskPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attachment payload: %w", err)
	}
	return asynq.NewTask(TypeAttachmentProcess, b, asynq.Queue(QueueImages), asynq.MaxRetry(3)), nil
}

func isImage(contentType, key string) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	lower := strings.ToLower(key)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// HandleAttachmentProcessTask downsizes oversized image attachments in place. Other
// attachment types are left as uploaded.
func (p *TaskProcessor) HandleAttachmentProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AttachmentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal attachment payload: %v: %w", err, asynq.SkipRetry)
	}
	if !storage.IsAttachmentKey(payload.BookingID, payload.Key) {
		return fmt.Errorf("attachment key %q does not belong to booking %d: %w", payload.Key, payload.BookingID, asynq.SkipRetry)
	}

	body, size, contentType, err := p.attachments.GetObject(ctx, payload.Key)
	if err != nil {
		return err
	}
	defer body.Close()

	if !isImage(contentType, payload.Key) {
		return nil
	}

	maxSizeBytes := int64(p.cfg.AttachmentMaxSizeMB) << 20
	if maxSizeBytes > 0 && size > maxSizeBytes {
		log.Printf("Attachment %s exceeds max size (%d > %d bytes). Skipping.", payload.Key, size, maxSizeBytes)
		return fmt.Errorf("attachment exceeds max size: %w", asynq.SkipRetry)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read attachment %s: %w", payload.Key, err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt image %s: %w", payload.Key, asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.AttachmentMaxDimension)
	if maxDim == 0 || (uint(img.Bounds().Dx()) <= maxDim && uint(img.Bounds().Dy()) <= maxDim) {
		return nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to re-encode attachment %s: %w", payload.Key, err)
	}
	if err := p.attachments.PutObject(ctx, payload.Key, "image/jpeg", bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return err
	}
	log.Printf("Resized %s attachment %s from %dx%d to %dx%d", format, payload.Key,
		img.Bounds().Dx(), img.Bounds().Dy(), resized.Bounds().Dx(), resized.Bounds().Dy())
	return nil
}
