package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/engine"
	"github.com/jrcastro2/cds-videos/internal/repo"
	"github.com/jrcastro2/cds-videos/internal/tasks"
)

// Controller управляет жизненным циклом flow.
//
// Предусловие: с одним flow id одновременно работает один Controller.
// Конкурентную запись payload контроллер не сериализует — внешние
// вызывающие при необходимости сериализуют её сами.
type Controller struct {
	flowStore FlowStore
	taskStore TaskStore
	queue     ExecutionQueue
	runtime   TaskRuntime
	registry  *tasks.Registry
	assembler *engine.Assembler
	objects   ObjectProvisioner
	deposits  DepositNotifier
	logger    *slog.Logger
}

// Config — конфигурация Controller.
type Config struct {
	FlowStore FlowStore
	TaskStore TaskStore
	Queue     ExecutionQueue

	// Runtime — управление задачами у исполнителя (worker.Wrapper).
	Runtime TaskRuntime

	Registry *tasks.Registry

	// Objects и Deposits опциональны: без них Run пропускает
	// подготовку хранилища и уведомление депозита.
	Objects  ObjectProvisioner
	Deposits DepositNotifier

	Logger *slog.Logger
}

// New создаёт Controller.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		flowStore: cfg.FlowStore,
		taskStore: cfg.TaskStore,
		queue:     cfg.Queue,
		runtime:   cfg.Runtime,
		registry:  cfg.Registry,
		assembler: engine.NewAssembler(cfg.Registry, cfg.TaskStore),
		objects:   cfg.Objects,
		deposits:  cfg.Deposits,
		logger:    logger.With("component", "flows"),
	}
}

// Create создаёт flow. Валидирует дескриптор целиком и возвращает
// ValidationError со всеми отсутствующими полями сразу.
func (c *Controller) Create(ctx context.Context, name, depositID, userID string, payload map[string]any) (*domain.Flow, error) {
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if depositID == "" {
		missing = append(missing, "deposit_id")
	}
	if userID == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	copied := engine.DeepCopyPayload(payload)
	copied["deposit_id"] = depositID

	flow := &domain.Flow{
		ID:        uuid.New(),
		Name:      name,
		DepositID: depositID,
		UserID:    userID,
		Payload:   copied,
	}
	if err := c.flowStore.Create(ctx, flow); err != nil {
		return nil, fmt.Errorf("create flow: %w", err)
	}

	c.logger.Info("flow created",
		"flow_id", flow.ID,
		"name", flow.Name,
		"deposit_id", flow.DepositID)
	return flow, nil
}

// Get возвращает flow по id.
func (c *Controller) Get(ctx context.Context, flowID uuid.UUID) (*domain.Flow, error) {
	flow, err := c.flowStore.Get(ctx, flowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
		}
		return nil, fmt.Errorf("get flow: %w", err)
	}
	return flow, nil
}

// GetForDeposit возвращает последний не удалённый flow депозита.
// Возвращает ErrFlowNotFound, если у депозита нет flow.
func (c *Controller) GetForDeposit(ctx context.Context, depositID string) (*domain.Flow, error) {
	flow, err := c.flowStore.GetByDeposit(ctx, depositID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: deposit %s", ErrFlowNotFound, depositID)
		}
		return nil, fmt.Errorf("get deposit flow: %w", err)
	}
	return flow, nil
}

// View возвращает сериализуемое представление flow с задачами
// и агрегированным статусом.
func (c *Controller) View(ctx context.Context, flowID uuid.UUID) (domain.FlowView, error) {
	flow, err := c.Get(ctx, flowID)
	if err != nil {
		return domain.FlowView{}, err
	}
	list, err := c.taskStore.ListByFlow(ctx, flowID)
	if err != nil {
		return domain.FlowView{}, fmt.Errorf("list flow tasks: %w", err)
	}
	return domain.NewFlowView(flow, list), nil
}

// Assemble строит canvas flow, создавая Task-записи. Выполняется
// ровно один раз; повторный вызов возвращает engine.ErrAlreadyAssembled.
func (c *Controller) Assemble(ctx context.Context, flowID uuid.UUID) (*engine.Canvas, error) {
	flow, err := c.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}

	canvas, err := c.assembler.Assemble(ctx, flow, engine.BuildAVCSteps(flow.Payload))
	if err != nil {
		return nil, err
	}

	c.logger.Info("flow assembled",
		"flow_id", flow.ID,
		"units", len(canvas.Units),
		"tasks", len(canvas.TaskIDs()))
	return canvas, nil
}

// Start отправляет canvas flow в очередь выполнения. Если flow ещё
// не собран — собирает; если уже собран — восстанавливает canvas из
// Task-записей, так что повторный Start после сбоя отправки безопасен.
//
// Ошибка отправки оборачивается в ErrSubmission: записи задач к этому
// моменту уже сохранены, flow остаётся собранным.
func (c *Controller) Start(ctx context.Context, flowID uuid.UUID) (*engine.Canvas, error) {
	flow, err := c.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}

	existing, err := c.taskStore.ListByFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("list flow tasks: %w", err)
	}

	var canvas *engine.Canvas
	if len(existing) == 0 {
		canvas, err = c.assembler.Assemble(ctx, flow, engine.BuildAVCSteps(flow.Payload))
	} else {
		canvas, err = engine.Rebuild(flow.ID, existing)
	}
	if err != nil {
		return nil, err
	}

	if err := c.queue.Submit(ctx, canvas); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	c.logger.Info("flow submitted",
		"flow_id", flow.ID,
		"execution_id", canvas.ID)
	return canvas, nil
}

// Run — сквозной сценарий запуска flow.
//
// Проверяет обязательные ключи payload (владелец, источник файла,
// целевое имя) и возвращает PreconditionError со всеми отсутствующими
// ключами сразу. Затем подготавливает объектное хранилище: гарантирует
// bucket и, если файл ещё не загружен, резервирует version_id.
// Изменённый payload сохраняется ДО отправки, чтобы все задачи видели
// итоговую версию; при сбое отправки штамп остаётся, и повторный Run
// переиспользует уже подготовленный объект.
//
// После старта депозит уведомляется о новом состоянии flow
// (best-effort: сбой уведомления не откатывает запуск).
func (c *Controller) Run(ctx context.Context, flowID uuid.UUID) (*domain.Flow, error) {
	flow, err := c.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}

	var missing []string
	if flow.DepositID == "" && payloadString(flow.Payload, "deposit_id") == "" {
		missing = append(missing, "deposit_id")
	}
	uri := payloadString(flow.Payload, "uri")
	versionID := payloadString(flow.Payload, "version_id")
	if uri == "" && versionID == "" {
		missing = append(missing, "uri or version_id")
	}
	key := payloadString(flow.Payload, "key")
	if key == "" {
		missing = append(missing, "key")
	}
	if len(missing) > 0 {
		return nil, &PreconditionError{Missing: missing}
	}

	if c.objects != nil {
		bucket := payloadString(flow.Payload, "bucket_id")
		if bucket == "" {
			bucket = "deposit-" + flow.DepositID
			flow.Payload["bucket_id"] = bucket
		}
		if err := c.objects.EnsureBucket(ctx, bucket); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
		if versionID == "" {
			version, err := c.objects.NewVersion(ctx, bucket, key)
			if err != nil {
				return nil, fmt.Errorf("provision object version: %w", err)
			}
			flow.Payload["version_id"] = version
			c.logger.Info("object version provisioned",
				"flow_id", flow.ID,
				"bucket", bucket,
				"version_id", version)
		}
	}

	if err := c.flowStore.Update(ctx, flow); err != nil {
		return nil, fmt.Errorf("persist flow payload: %w", err)
	}

	if _, err := c.Start(ctx, flowID); err != nil {
		return nil, err
	}

	if c.deposits != nil {
		view, err := c.View(ctx, flowID)
		if err == nil {
			err = c.deposits.FlowUpdated(ctx, flow.DepositID, view)
		}
		if err != nil {
			c.logger.Warn("deposit notification failed",
				"flow_id", flow.ID,
				"deposit_id", flow.DepositID,
				"error", err)
		}
	}

	return flow, nil
}

// Stop отменяет ещё не начатые задачи flow через исполнителя:
// каждая PENDING-задача отменяется через TaskRuntime, который помечает
// её REVOKED и рассылает сигнал отмены. Best-effort: задачи в
// терминальном или STARTED состоянии не трогаются, уже начатая работа
// может завершиться после возврата.
func (c *Controller) Stop(ctx context.Context, flowID uuid.UUID) error {
	flow, err := c.Get(ctx, flowID)
	if err != nil {
		return err
	}

	list, err := c.taskStore.ListByFlow(ctx, flowID)
	if err != nil {
		return fmt.Errorf("list flow tasks: %w", err)
	}

	revoked := 0
	for i := range list {
		task := &list[i]
		if task.Status != domain.StatusPending {
			continue
		}
		if err := c.runtime.StopTask(ctx, task.ID); err != nil {
			return fmt.Errorf("stop task %s: %w", task.ID, err)
		}
		revoked++
	}

	c.logger.Info("flow stopped",
		"flow_id", flow.ID,
		"revoked", revoked)
	return nil
}

// RestartTask перезапускает одну задачу flow.
//
// Статус сбрасывается в PENDING, поверх сохранённого payload задачи
// накладывается ТЕКУЩИЙ payload flow (при коллизии побеждает flow),
// и задача переотправляется с тем же id: дедупликация исполнителя
// вытесняет устаревшую работу с этим id, отдельной отмены не нужно.
//
// Возвращает ErrTaskNotFound, если задача не принадлежит flow.
func (c *Controller) RestartTask(ctx context.Context, flowID, taskID uuid.UUID) error {
	flow, err := c.Get(ctx, flowID)
	if err != nil {
		return err
	}

	task, err := c.taskStore.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("get task: %w", err)
	}
	if task.FlowID != flow.ID {
		return fmt.Errorf("%w: task %s does not belong to flow %s", ErrTaskNotFound, taskID, flowID)
	}

	kwargs := engine.DeepCopyPayload(task.Payload)
	for k, v := range engine.DeepCopyPayload(flow.Payload) {
		kwargs[k] = v
	}
	kwargs["flow_id"] = flow.ID.String()
	kwargs["task_id"] = task.ID.String()
	delete(kwargs, "flow")

	task.Payload = kwargs
	task.ResetForRestart()

	// Запись сохраняется до отправки: callback завершения может
	// прийти раньше возврата Submit.
	if err := c.taskStore.Update(ctx, task); err != nil {
		return fmt.Errorf("reset task %s: %w", task.ID, err)
	}

	canvas := engine.SingleUnit(flow.ID, engine.Signature{
		TaskID: task.ID,
		Name:   task.Name,
		Kwargs: kwargs,
	})
	if err := c.queue.Submit(ctx, canvas); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	c.logger.Info("task restarted",
		"flow_id", flow.ID,
		"task_id", task.ID,
		"name", task.Name)
	return nil
}

// Clean откатывает артефакты задач flow в порядке, обратном
// зависимостям: кадры, транскоды по каждому качеству, метаданные и —
// если файл скачивался — сам загруженный объект. Хуки очистки
// идемпотентны, поэтому Clean безопасен для flow, который никогда
// не запускался. В конце вызывается Stop.
func (c *Controller) Clean(ctx context.Context, flowID uuid.UUID) error {
	flow, err := c.Get(ctx, flowID)
	if err != nil {
		return err
	}

	base := engine.DeepCopyPayload(flow.Payload)
	base["flow_id"] = flow.ID.String()

	cleanups := []cleanupCall{{engine.TaskExtractFrames, base}}
	for _, quality := range engine.PresetQualities(flow.Payload) {
		kwargs := engine.DeepCopyPayload(base)
		kwargs["preset_quality"] = quality
		cleanups = append(cleanups, cleanupCall{engine.TaskTranscode, kwargs})
	}
	cleanups = append(cleanups, cleanupCall{engine.TaskMetadataExtraction, base})
	if payloadString(flow.Payload, "uri") != "" {
		cleanups = append(cleanups, cleanupCall{engine.TaskDownload, base})
	}

	var errs []error
	for _, cleanup := range cleanups {
		handler, err := c.registry.Get(cleanup.alias)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := handler.Clean(ctx, cleanup.kwargs); err != nil {
			errs = append(errs, fmt.Errorf("clean %s: %w", cleanup.alias, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.logger.Info("flow cleaned", "flow_id", flow.ID)
	return c.Stop(ctx, flowID)
}

// Delete выполняет Clean и помечает flow удалённым. Мягкое удаление:
// Task-записи сохраняются.
func (c *Controller) Delete(ctx context.Context, flowID uuid.UUID) error {
	if err := c.Clean(ctx, flowID); err != nil {
		return err
	}
	if err := c.flowStore.Delete(ctx, flowID); err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	c.logger.Info("flow deleted", "flow_id", flowID)
	return nil
}

// cleanupCall — один вызов хука очистки: короткое имя задачи и kwargs.
type cleanupCall struct {
	alias  string
	kwargs map[string]any
}

// payloadString достаёт строковое значение ключа payload.
// Отсутствие ключа и нестроковое значение неразличимы: и то и другое — "".
func payloadString(payload map[string]any, key string) string {
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return value
}
