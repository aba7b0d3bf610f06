// Package assertions checks responses against expectations.
//
// MatchExpected compares a body with a step's expected response: every
// expected member must be present with an equal value, extra members are
// allowed. An expected value of the form {"operator": "matches", "value": "^Q-"}
// applies an operator instead of equality.
//
// Supported operators: equals (==), notEquals (!=), >, >=, <, <=, contains,
// startsWith, endsWith, matches, exists, notExists, length, includes, in,
// type and schema (inline JSON schema).
package assertions
