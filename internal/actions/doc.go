// Package actions holds the concrete action step types.
//
// Actions perform the side effect of an automation once its trigger has
// proceeded. Each type ships a step.Factory that names it, builds an
// empty instance and (de)serialises its configuration:
//
//   - WebhookAction sends an HTTP request built from the step data.
//   - VibrateAction publishes a haptic command on the device bus.
package actions
