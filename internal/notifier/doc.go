// Package notifier delivers reminder prompts over the chat transport.
//
// Every outbound call passes one shared token-bucket limiter and a per-call
// timeout. There are no retries: a failed send is reported to the caller,
// which logs it.
package notifier
