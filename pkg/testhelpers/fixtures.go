package testhelpers

// EngineeringHeadcount is the number of fixture employees in the Engineering department.
const EngineeringHeadcount = 8

// FixtureTables lists the tables created by EmployeesFixture.
var FixtureTables = []string{"departments", "employees", "projects"}

// EmployeesFixture is the sample company database used across tests. The DDL is
// limited to types PostgreSQL and SQLite both accept.
var EmployeesFixture = []string{
	`CREATE TABLE departments (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		budget INTEGER
	)`,
	`CREATE TABLE employees (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL,
		department_id INTEGER REFERENCES departments(id),
		salary INTEGER NOT NULL,
		hire_date TEXT
	)`,
	`CREATE TABLE projects (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		department_id INTEGER REFERENCES departments(id),
		status TEXT NOT NULL DEFAULT 'active'
	)`,
	`INSERT INTO departments (id, name, budget) VALUES
		(1, 'Engineering', 1500000),
		(2, 'Sales', 600000),
		(3, 'Marketing', 400000),
		(4, 'Finance', 350000)`,
	`INSERT INTO employees (id, name, department, department_id, salary, hire_date) VALUES
		(1, 'Alice Johnson', 'Engineering', 1, 145000, '2019-03-11'),
		(2, 'Bob Smith', 'Engineering', 1, 128000, '2020-07-01'),
		(3, 'Carol White', 'Engineering', 1, 152000, '2018-01-15'),
		(4, 'David Brown', 'Engineering', 1, 110000, '2022-05-23'),
		(5, 'Eve Davis', 'Engineering', 1, 134000, '2021-09-06'),
		(6, 'Frank Miller', 'Engineering', 1, 99000, '2023-02-13'),
		(7, 'Grace Lee', 'Engineering', 1, 161000, '2017-11-20'),
		(8, 'Henry Wilson', 'Engineering', 1, 118000, '2022-10-03'),
		(9, 'Ivy Chen', 'Sales', 2, 88000, '2020-04-14'),
		(10, 'Jack Taylor', 'Sales', 2, 92000, '2019-08-19'),
		(11, 'Karen Moore', 'Sales', 2, 79000, '2023-06-05'),
		(12, 'Leo Martin', 'Marketing', 3, 85000, '2021-01-25'),
		(13, 'Mia Clark', 'Marketing', 3, 90000, '2018-12-03'),
		(14, 'Noah Lewis', 'Finance', 4, 105000, '2016-06-27'),
		(15, 'Olivia Hall', 'Finance', 4, 98000, '2020-10-12')`,
	`INSERT INTO projects (id, name, department_id, status) VALUES
		(1, 'Query Engine', 1, 'active'),
		(2, 'Billing Revamp', 1, 'active'),
		(3, 'Partner Portal', 2, 'completed'),
		(4, 'Brand Refresh', 3, 'active'),
		(5, 'Audit Automation', 4, 'paused')`,
}
