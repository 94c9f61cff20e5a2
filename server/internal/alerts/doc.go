// Package alerts implements the rule evaluation engine and webhook delivery
// for machine efficiency alerting. Rules are evaluated against each machine
// evaluation; webhooks are delivered to Teams, Slack, or generic HTTP targets.
package alerts
