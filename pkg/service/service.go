// Package service provides the business logic of the application.
// It is organized into sub-packages for different domains:
// - goal: goal lifecycle, approval and cancellation
// - pool: contribution pooling and progress
// - settlement: payouts and auto-payment execution
// - risk: goal health and milestone assessment
// - dispatch: autonomous action execution
// - monitor: the periodic monitoring scheduler
//
// To use services, import the specific sub-package:
//
//	import "github.com/ambaglabs/ambag/pkg/service/goal"
//	import "github.com/ambaglabs/ambag/pkg/service/pool"
//	import "github.com/ambaglabs/ambag/pkg/service/settlement"
//	import "github.com/ambaglabs/ambag/pkg/service/monitor"
package service
