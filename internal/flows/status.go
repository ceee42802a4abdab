package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrcastro2/cds-videos/internal/domain"
	"github.com/jrcastro2/cds-videos/internal/repo"
)

// TaskStatusesByName группирует статусы задач по короткому имени типа
// и сворачивает каждую группу в один статус. Транскоды разных качеств
// попадают в одну группу file_transcode: сбой любого качества делает
// всю группу FAILURE.
func (c *Controller) TaskStatusesByName(list []domain.Task) map[string]domain.Status {
	grouped := make(map[string][]domain.Status)
	for _, task := range list {
		alias := c.registry.Alias(task.Name)
		grouped[alias] = append(grouped[alias], task.Status)
	}

	result := make(map[string]domain.Status, len(grouped))
	for alias, statuses := range grouped {
		result[alias] = domain.ComputeStatus(statuses)
	}
	return result
}

// DepositStatus возвращает свёрнутые по имени задачи статусы всех
// не удалённых flows депозита. Депозит может нести больше одного flow
// (например, мигрированный legacy рядом с текущим) — карты статусов
// объединяются по правилам доминирования. Возвращает ErrFlowNotFound,
// если у депозита нет flow.
func (c *Controller) DepositStatus(ctx context.Context, depositID string) (map[string]domain.Status, error) {
	list, err := c.flowStore.ListByDeposit(ctx, depositID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: deposit %s", ErrFlowNotFound, depositID)
		}
		return nil, fmt.Errorf("list deposit flows: %w", err)
	}

	var merged map[string]domain.Status
	for _, flow := range list {
		if flow.Deleted {
			continue
		}
		tasks, err := c.taskStore.ListByFlow(ctx, flow.ID)
		if err != nil {
			return nil, fmt.Errorf("list flow tasks: %w", err)
		}
		statuses := c.TaskStatusesByName(tasks)
		if merged == nil {
			merged = statuses
			continue
		}
		merged = domain.MergeTaskStatuses(merged, statuses)
	}
	if merged == nil {
		return nil, fmt.Errorf("%w: deposit %s", ErrFlowNotFound, depositID)
	}
	return merged, nil
}
