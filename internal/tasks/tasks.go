package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	_ "golang.org/x/image/webp"

	"soomhub/market/internal/config"
	"soomhub/market/internal/email"
	"soomhub/market/internal/services"
	"soomhub/market/internal/storage"
	"soomhub/market/internal/utils"
)

// Task types.
const (
	TypeEmailDelivery      = "email:deliver"
	TypeImageProcess       = "image:process"
	TypeValidationReminder = "submission:validation:reminder"
)

// Queue names.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueImages   = "images"
)

// --- Task Client (Enqueuing tasks) ---

// redisOpt carries the go-redis connection settings over to asynq.
func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// TaskEnqueuer is the part of *asynq.Client used to submit tasks.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer turns domain requests into asynq tasks.
type Enqueuer struct {
	client TaskEnqueuer
}

func NewEnqueuer(client TaskEnqueuer) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueEmail implements services.EmailEnqueuer.
func (e *Enqueuer) EnqueueEmail(ctx context.Context, msg services.EmailMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode email task: %w", err)
	}
	_, err = e.client.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, payload),
		asynq.Queue(QueueCritical), asynq.MaxRetry(10))
	if err != nil {
		return fmt.Errorf("failed to enqueue email %s: %w", msg.TemplateID, err)
	}
	return nil
}

// ImageTaskPayload identifies an uploaded listing image.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id"`
}

func (e *Enqueuer) EnqueueImage(ctx context.Context, listingID utils.SixID, key string) error {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: key, ListingID: listingID.String()})
	if err != nil {
		return fmt.Errorf("failed to encode image task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, asynq.NewTask(TypeImageProcess, payload), asynq.Queue(QueueImages)); err != nil {
		return fmt.Errorf("failed to enqueue image %s: %w", key, err)
	}
	return nil
}

// EnqueueValidationReminder submits one reminder sweep. Duplicate sweeps within the
// uniqueness window are dropped by asynq.
func (e *Enqueuer) EnqueueValidationReminder(ctx context.Context) error {
	_, err := e.client.EnqueueContext(ctx, asynq.NewTask(TypeValidationReminder, nil),
		asynq.Queue(QueueDefault), asynq.Unique(30*time.Minute), asynq.MaxRetry(2))
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("failed to enqueue validation reminder sweep: %w", err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg               *config.Config
	emailSender       email.Sender
	storageService    storage.IS3Storage
	listingService    services.IListingService
	submissionService services.ISubmissionService
	notifier          services.INotifier
	now               func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	listingService services.IListingService,
	submissionService services.ISubmissionService,
	notifier services.INotifier,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:               cfg,
		emailSender:       emailSender,
		storageService:    storageService,
		listingService:    listingService,
		submissionService: submissionService,
		notifier:          notifier,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetupServer builds the asynq server and the handler mux for the given worker roles.
// It returns nils when neither role is enabled. The caller runs and shuts down the server.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()

	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeValidationReminder, processor.HandleValidationReminderTask)
		log.Println("Registered background task handlers (email, validation reminders).")
	}
	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	srv := asynq.NewServer(redisOpt(rdb), asynq.Config{
		Queues: queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("ERROR task %s failed: %v", task.Type(), err)
		}),
	})
	return srv, mux
}

// --- Task Handlers ---

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var msg services.EmailMessage
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email task has no recipients: %w", asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s", fromAddress)
	}

	raw := email.BuildMessage(fromAddress, msg.To, msg.Subject, msg.Body, msg.TemplateID)
	if err := p.emailSender.Send(ctx, msg.To, msg.Subject, raw); err != nil {
		log.Printf("Email %s to %v failed, will retry: %v", msg.TemplateID, msg.To, err)
		return err
	}
	log.Printf("Email task processed successfully: To=%v, Template=%s", msg.To, msg.TemplateID)
	return nil
}

// HandleImageProcessTask bounds an uploaded listing image to the configured dimension,
// re-encodes it as JPEG and attaches it to the listing.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
	}

	imgData, contentType, err := p.storageService.GetObject(ctx, payload.S3Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		return fmt.Errorf("image %s exceeds max size of %d bytes: %w", payload.S3Key, maxSizeBytes, asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt image %s: %w", payload.S3Key, asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	bounds := img.Bounds()
	if uint(bounds.Dx()) > maxDim || uint(bounds.Dy()) > maxDim || format != "jpeg" {
		processed := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode image %s: %w", payload.S3Key, err)
		}
		if int64(buf.Len()) > maxSizeBytes {
			return fmt.Errorf("processed image %s still exceeds max size: %w", payload.S3Key, asynq.SkipRetry)
		}
		if err := p.storageService.PutObject(ctx, payload.S3Key, "image/jpeg", buf.Bytes()); err != nil {
			return err
		}
		log.Printf("Processed image %s (%s %dx%d -> %dx%d)", payload.S3Key, format,
			bounds.Dx(), bounds.Dy(), processed.Bounds().Dx(), processed.Bounds().Dy())
	} else {
		log.Printf("Image %s (%s) kept as uploaded", payload.S3Key, contentType)
	}

	if err := p.listingService.AddImageToListing(ctx, listingID, payload.S3Key); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("listing %s is gone: %w", listingID, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to update listing with processed image: %w", err)
	}
	return nil
}

// HandleValidationReminderTask notifies sellers whose validation window closes soon.
// A submission is marked reminded only after its notification was queued.
func (p *TaskProcessor) HandleValidationReminderTask(ctx context.Context, t *asynq.Task) error {
	now := p.now()
	due, err := p.submissionService.FindDueForReminder(ctx, now, p.cfg.ValidationReminderLead)
	if err != nil {
		return err
	}

	sent := 0
	var failed error
	for i := range due {
		sub := &due[i]
		listing, err := p.listingService.FindListingByID(ctx, sub.ListingID)
		if err != nil {
			log.Printf("Warning: skipping reminder for submission %s: %v", sub.ID, err)
			continue
		}
		if err := p.notifier.ValidationClosing(ctx, sub, listing); err != nil {
			log.Printf("ERROR queueing reminder for submission %s: %v", sub.ID, err)
			failed = err
			continue
		}
		if _, err := p.submissionService.MarkReminderSent(ctx, sub.ID, now); err != nil {
			log.Printf("ERROR marking reminder of submission %s: %v", sub.ID, err)
			failed = err
			continue
		}
		sent++
	}
	log.Printf("Validation reminder sweep finished: %d due, %d reminded.", len(due), sent)
	return failed
}
