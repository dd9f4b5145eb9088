// Package saga 顺序执行的补偿事务
//
// 每个步骤由正向操作和补偿操作组成，某一步失败时按逆序补偿已完成的步骤。
// 下单+初始化支付会话就是一个两步Saga：支付会话创建失败，订单转为已取消。
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/xiebiao/ebookstore/pkg/metrics"
)

// Step Saga中的一个步骤
// Action与Compensate都必须幂等
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga 补偿事务
type Saga struct {
	name     string
	steps    []Step
	executed []Step
	timeout  time.Duration
}

// NewSaga 创建Saga，timeout<=0表示不限制
//
//	s := saga.NewSaga("checkout", 30*time.Second)
//	s.AddStep("create_order", createOrder, cancelOrder)
//	s.AddStep("init_payment", initPayment, nil)
//	err := s.Execute(ctx)
func NewSaga(name string, timeout time.Duration) *Saga {
	return &Saga{
		name:    name,
		steps:   make([]Step, 0),
		timeout: timeout,
	}
}

// AddStep 追加步骤，Action与Compensate都可以为nil
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, Step{
		Name:       name,
		Action:     action,
		Compensate: compensate,
	})
}

// Execute 按顺序执行所有步骤
// 失败或超时时触发补偿，返回的错误包含原始失败原因；
// 补偿本身失败时一并聚合到返回值中（multierror）
func (s *Saga) Execute(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.ObserveHistogram(metrics.SagaExecutionDuration, time.Since(start).Seconds())
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.fail(fmt.Errorf("saga[%s]超时: %w", s.name, err))
		}

		if step.Action != nil {
			if err := step.Action(ctx); err != nil {
				return s.fail(fmt.Errorf("saga[%s]步骤[%d:%s]失败: %w", s.name, i, step.Name, err))
			}
		}
		s.executed = append(s.executed, step)
	}

	metrics.IncCounterVec(metrics.SagaExecutionsTotal, map[string]string{"saga": s.name, "status": "success"})
	return nil
}

// fail 执行补偿并组装错误
// 补偿使用独立的Context，避免随原请求一起超时
func (s *Saga) fail(cause error) error {
	metrics.IncCounterVec(metrics.SagaExecutionsTotal, map[string]string{"saga": s.name, "status": "failed"})

	if compErr := s.compensate(context.Background()); compErr != nil {
		return multierror.Append(cause, compErr)
	}
	return cause
}

// compensate 逆序补偿，单个补偿失败不影响其余补偿
func (s *Saga) compensate(ctx context.Context) error {
	var result *multierror.Error
	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]
		if step.Compensate == nil {
			continue
		}
		metrics.IncCounter(metrics.SagaCompensationsTotal)
		if err := step.Compensate(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("补偿[%s]失败: %w", step.Name, err))
		}
	}
	return result.ErrorOrNil()
}

// ExecutedSteps 已成功执行的步骤名（调试用）
func (s *Saga) ExecutedSteps() []string {
	names := make([]string, 0, len(s.executed))
	for _, step := range s.executed {
		names = append(names, step.Name)
	}
	return names
}
