package authorizer

// CandidatesFromPolicies exposes candidatesFromPolicies to the external
// test package.
var CandidatesFromPolicies = candidatesFromPolicies
