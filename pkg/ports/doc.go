/*
Package ports defines the driven ports of the bench runner.

  - Locker: enforces a single active run per station.
  - ReportStore: keeps the reports of finished runs.

RunLockerContract and RunReportStoreContract are shared test suites that every
adapter runs against its implementation.
*/
package ports
