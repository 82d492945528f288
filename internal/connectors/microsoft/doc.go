// Package microsoft provides the shared plumbing for Microsoft Dynamics 365 APIs.
//
// This package provides:
//   - OAuth2 client-credentials token acquisition for Azure AD and ADFS
//   - Rate limiting for D365 service protection limits
//   - Error mapping for D365 OData responses
//   - Endpoint and resource helpers
//
// # Products
//
// Two API shapes are supported:
//   - Dataverse Web API: https://<org>.crm.dynamics.com/api/data/v9.2/
//   - Finance & Operations OData: https://<env>.operations.dynamics.com/data/
//
// # OAuth2 Flow
//
// Both identity providers use the client-credentials grant:
//   - Azure AD: https://login.microsoftonline.com/<tenant>/oauth2/v2.0/token,
//     audience passed as scope "<resource>/.default"
//   - ADFS: a configured token URL, audience passed as "resource"
//
// The resource defaults to the scheme and host of the configured endpoint.
//
// # Rate Limits
//
// Dataverse enforces 6,000 requests per user per 5 minute window and answers
// 429 with a Retry-After header when exceeded. F&O applies priority-based
// throttling with the same signal. This package keeps a conservative client-side
// limit and shares Retry-After backoff between concurrent callers.
package microsoft
