// Package alerts implements the rule evaluation engine and webhook delivery
// for netsentry alerting. Rules are evaluated against health snapshots;
// webhooks are delivered to Teams, Slack, PagerDuty, or generic HTTP targets.
package alerts
