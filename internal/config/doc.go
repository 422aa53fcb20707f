// Package config собирает конфигурацию процесса из переменных
// окружения: пути pipeline и credentials, параметры пула, бинарники
// и аргументы внешних collaborators, адреса PostgreSQL и RabbitMQ.
package config
