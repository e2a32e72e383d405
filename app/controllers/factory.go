package controllers

import (
	"go.uber.org/dig"

	"github.com/csipbllm/backend-go/internal/database"
	"github.com/csipbllm/backend-go/internal/knowledge"
	"github.com/csipbllm/backend-go/internal/services"
)

// ControllerFactory 控制器工厂
type ControllerFactory struct {
	container *dig.Container
}

// NewControllerFactory 创建控制器工厂
func NewControllerFactory(container *dig.Container) *ControllerFactory {
	return &ControllerFactory{
		container: container,
	}
}

// CreateTutorController 创建辅导控制器
func (f *ControllerFactory) CreateTutorController() (*TutorController, error) {
	var ctrl *TutorController
	err := f.container.Invoke(func(tutor *services.TutorService, eval *services.EvaluationService, metrics *services.MetricsService) {
		ctrl = NewTutorController(tutor, eval, metrics)
	})
	return ctrl, err
}

// CreateHistoryController 创建历史控制器
func (f *ControllerFactory) CreateHistoryController() (*HistoryController, error) {
	var ctrl *HistoryController
	err := f.container.Invoke(func(conversations *services.ConversationService) {
		ctrl = NewHistoryController(conversations)
	})
	return ctrl, err
}

// CreateHealthController 创建健康检查控制器
func (f *ControllerFactory) CreateHealthController() (*HealthController, error) {
	var ctrl *HealthController
	err := f.container.Invoke(func(index *knowledge.MaterialIndex, health *database.HealthChecker) {
		ctrl = NewHealthController(index, health)
	})
	return ctrl, err
}

// CreateWarmupController 创建预热控制器
func (f *ControllerFactory) CreateWarmupController() (*WarmupController, error) {
	var ctrl *WarmupController
	err := f.container.Invoke(func(index *knowledge.MaterialIndex, metrics *services.MetricsService) {
		ctrl = NewWarmupController(index, metrics)
	})
	return ctrl, err
}

// CreateMetricsController 创建指标控制器
func (f *ControllerFactory) CreateMetricsController() (*MetricsController, error) {
	var ctrl *MetricsController
	err := f.container.Invoke(func(metrics *services.MetricsService) {
		ctrl = NewMetricsController(metrics)
	})
	return ctrl, err
}
