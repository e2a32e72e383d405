package di

import (
	"go.uber.org/dig"
)

// Container 全局依赖注入容器
var Container *dig.Container

// InitContainer 初始化依赖注入容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// GetContainer 获取依赖注入容器实例
func GetContainer() *dig.Container {
	return Container
}

// Invoke 在全局容器上调用函数
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}

// Provide 向全局容器注册构造函数
func Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	return Container.Provide(constructor, opts...)
}

// Resolve 从容器中取出单个类型的实例
func Resolve[T any](container *dig.Container) (T, error) {
	var out T
	err := container.Invoke(func(v T) { out = v })
	return out, err
}
