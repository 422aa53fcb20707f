// Package mq публикует события жизненного цикла runs в RabbitMQ.
//
// Поток событий односторонний: run.started и run.finished в
// bakehouse.runs, job.finished в bakehouse.jobs. Оркестрация не
// зависит от брокера — без него события просто не публикуются.
package mq
